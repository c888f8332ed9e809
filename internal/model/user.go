// Package model はドメインモデルを定義する。
package model

import "time"

// Credential は認証プロバイダーが保持するサインイン情報を表す。
// プロフィール（profiles）とは別テーブルで管理され、IDを共有する。
type Credential struct {
	ID           string
	Email        string
	PasswordHash string
	FullName     string
	CreatedAt    time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// ProfileRow はprofilesテーブルの1行を表す。
// 任意項目は空文字列で「未設定」を表す。
type ProfileRow struct {
	ID             string
	Email          string
	FullName       string
	Role           string
	Language       string
	DepartmentID   string
	DepartmentName string
	Phone          string
	Address        string
	JoinedAt       time.Time
	CreatedAt      time.Time
}

// Identity はセッションにキャッシュされる認証済みユーザーを表す。
type Identity struct {
	ID             string
	Email          string
	FullName       string
	Role           Role
	Language       string
	Phone          string
	Address        string
	DepartmentID   string
	DepartmentName string
}

// Identity はプロフィール行からIdentityを生成する。
// ロールは検証せずにそのまま写す。未知のロールの扱いはアクセスガードが決める。
func (p *ProfileRow) Identity() *Identity {
	return &Identity{
		ID:             p.ID,
		Email:          p.Email,
		FullName:       p.FullName,
		Role:           Role(p.Role),
		Language:       p.Language,
		Phone:          p.Phone,
		Address:        p.Address,
		DepartmentID:   p.DepartmentID,
		DepartmentName: p.DepartmentName,
	}
}

// ProfileUpdate はセルフサービスのプロフィール部分更新を表す。
// nilのフィールドは変更しない。ロールは管理者操作のため含めない。
type ProfileUpdate struct {
	FullName     *string
	Phone        *string
	Address      *string
	Language     *string
	DepartmentID *string
}

// IsEmpty は更新対象のフィールドが1つもないかどうかを返す。
func (u ProfileUpdate) IsEmpty() bool {
	return u.FullName == nil && u.Phone == nil && u.Address == nil &&
		u.Language == nil && u.DepartmentID == nil
}

// ApplyTo は更新内容をIdentityのコピーに反映して返す。元のIdentityは変更しない。
func (u ProfileUpdate) ApplyTo(id *Identity) *Identity {
	merged := *id
	if u.FullName != nil {
		merged.FullName = *u.FullName
	}
	if u.Phone != nil {
		merged.Phone = *u.Phone
	}
	if u.Address != nil {
		merged.Address = *u.Address
	}
	if u.Language != nil {
		merged.Language = *u.Language
	}
	if u.DepartmentID != nil {
		merged.DepartmentID = *u.DepartmentID
		// 部署名はDBのJOINで決まるため、変更時は次回の解決まで空にする
		merged.DepartmentName = ""
	}
	return &merged
}
