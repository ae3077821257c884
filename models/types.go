package models

import "time"

// MainPageName is the title of the article created for a fresh instance
const MainPageName = "Main_Page"

// Request types

type RegisterUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CreateArticleRequest struct {
	Title   string `json:"title"`
	Text    string `json:"text"`
	Summary string `json:"summary"`
}

type EditArticleRequest struct {
	ArticleID int `json:"article_id"`
	// Full new text; the diff is generated server side
	NewText string `json:"new_text"`
	Summary string `json:"summary"`
	// Version the edit is based on, either ArticleView.LatestVersion or
	// APIConflict.PreviousVersionID
	PreviousVersionID EditVersion `json:"previous_version_id"`
	// Set when resubmitting after a manual merge
	ResolveConflictID *int `json:"resolve_conflict_id,omitempty"`
}

type ForkArticleRequest struct {
	ArticleID int    `json:"article_id"`
	NewTitle  string `json:"new_title"`
}

type ProtectArticleRequest struct {
	ArticleID int  `json:"article_id"`
	Protected bool `json:"protected"`
}

type ApproveArticleRequest struct {
	ArticleID int  `json:"article_id"`
	Approve   bool `json:"approve"`
}

type DeleteConflictRequest struct {
	ConflictID int `json:"conflict_id"`
}

type FollowInstanceRequest struct {
	ID int `json:"id"`
}

// Domain types

// Person is a local or remote user
type Person struct {
	ID              int       `json:"id"`
	Username        string    `json:"username"`
	APID            string    `json:"ap_id"`
	InboxURL        string    `json:"inbox_url"`
	PublicKey       string    `json:"-"`
	PrivateKey      *string   `json:"-"` // Never expose in JSON
	LastRefreshedAt time.Time `json:"-"`
	Local           bool      `json:"local"`
}

// LocalUser is an account registered on this instance
type LocalUser struct {
	ID                int    `json:"id"`
	PasswordEncrypted string `json:"-"` // Never expose in JSON
	PersonID          int    `json:"person_id"`
	Admin             bool   `json:"admin"`
}

type LocalUserView struct {
	Person    Person     `json:"person"`
	LocalUser LocalUser  `json:"local_user"`
	Following []Instance `json:"following"`
}

type Instance struct {
	ID              int       `json:"id"`
	Domain          string    `json:"domain"`
	APID            string    `json:"ap_id"`
	Description     *string   `json:"description,omitempty"`
	InboxURL        string    `json:"inbox_url"`
	ArticlesURL     string    `json:"articles_url"`
	PublicKey       string    `json:"-"`
	PrivateKey      *string   `json:"-"`
	LastRefreshedAt time.Time `json:"-"`
	Local           bool      `json:"local"`
}

type InstanceView struct {
	Instance  Instance `json:"instance"`
	Followers []Person `json:"followers"`
}

type Article struct {
	ID         int       `json:"id"`
	Title      string    `json:"title"`
	Text       string    `json:"text"`
	APID       string    `json:"ap_id"`
	InstanceID int       `json:"instance_id"`
	Local      bool      `json:"local"`
	Protected  bool      `json:"protected"`
	Approved   bool      `json:"approved"`
	Published  time.Time `json:"published"`
}

// Edit is a single change to an article
type Edit struct {
	ID        int         `json:"id"`
	CreatorID int         `json:"-"`
	Hash      EditVersion `json:"hash"`
	APID      string      `json:"ap_id"`
	Diff      string      `json:"diff"`
	Summary   string      `json:"summary"`
	ArticleID int         `json:"article_id"`
	// The first edit of an article always has DefaultEditVersion here
	PreviousVersionID EditVersion `json:"previous_version_id"`
	Created           time.Time   `json:"created"`
}

type EditView struct {
	Edit    Edit   `json:"edit"`
	Creator Person `json:"creator"`
}

type ArticleView struct {
	Article       Article     `json:"article"`
	LatestVersion EditVersion `json:"latest_version"`
	Edits         []EditView  `json:"edits"`
}

// Conflict is a stored edit that could not be applied because the article
// changed after the edit was started. It belongs to the person who made it.
type Conflict struct {
	ID                int         `json:"id"`
	Hash              EditVersion `json:"hash"`
	Diff              string      `json:"diff"`
	Summary           string      `json:"summary"`
	CreatorID         int         `json:"creator_id"`
	ArticleID         int         `json:"article_id"`
	PreviousVersionID EditVersion `json:"previous_version_id"`
	Published         time.Time   `json:"published"`
}

// APIConflict carries what a user needs for a manual three-way merge
type APIConflict struct {
	ID                int         `json:"id"`
	Hash              EditVersion `json:"hash"`
	ThreeWayMerge     string      `json:"three_way_merge"`
	Summary           string      `json:"summary"`
	Article           Article     `json:"article"`
	PreviousVersionID EditVersion `json:"previous_version_id"`
	Published         time.Time   `json:"published"`
}

// Response types

type EditArticleResponse struct {
	Conflict *APIConflict `json:"conflict"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
