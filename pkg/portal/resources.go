package portal

import "context"

// Defaults applied by the resource clients when a field is left empty.
const (
	DefaultMaxResults       = 1000
	DefaultGroupAccess      = "public"
	DefaultGroupSortField   = "avgRating"
	DefaultGroupSortOrder   = "desc"
	DefaultInviteRole       = "group_member"
	DefaultInviteExpiration = 10080
	DefaultTokenExpiration  = 60
	DefaultCascadeMaxItems  = 10000
	MetadataFileName        = "metadata.xml"
	SearchScopePublic       = "public"
	SearchScopeOrg          = "org"
	SearchScopeDefault      = "default"
)

// SearchOptions controls item, group and user searches.
type SearchOptions struct {
	// SortField is the field to sort by, e.g. "title", "owner", "created".
	SortField string `json:"sort_field,omitempty" yaml:"sort_field,omitempty"`
	// SortOrder is "asc" or "desc".
	SortOrder string `json:"sort_order,omitempty" yaml:"sort_order,omitempty"`
	// MaxResults caps the number of results requested. Defaults to 1000.
	// The last page is not trimmed, so up to one page more may be returned.
	MaxResults int `json:"max_results,omitempty" yaml:"max_results,omitempty"`
	// Scope is "default", "org" or "public". Except for "public", searches
	// on an organization portal are restricted to it by appending
	// "accountid:<org id>" to the query.
	Scope string `json:"scope,omitempty" yaml:"scope,omitempty"`
	// BBox restricts item searches to an extent "xmin,ymin,xmax,ymax".
	BBox string `json:"bbox,omitempty" yaml:"bbox,omitempty"`
	// Fields projects every result to the named keys when not empty.
	Fields []string `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// GroupCreateRequest represents a request to create a group.
type GroupCreateRequest struct {
	Title       string   `json:"title"                 yaml:"title"`
	Tags        []string `json:"tags"                  yaml:"tags"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Snippet     string   `json:"snippet,omitempty"     yaml:"snippet,omitempty"`
	// Access is "private", "org" or "public". Defaults to "public".
	Access string `json:"access,omitempty" yaml:"access,omitempty"`
	// SortField defaults to "avgRating".
	SortField string `json:"sort_field,omitempty" yaml:"sort_field,omitempty"`
	// SortOrder defaults to "desc".
	SortOrder        string `json:"sort_order,omitempty"         yaml:"sort_order,omitempty"`
	IsInvitationOnly bool   `json:"is_invitation_only,omitempty" yaml:"is_invitation_only,omitempty"`
	IsViewOnly       bool   `json:"is_view_only,omitempty"       yaml:"is_view_only,omitempty"`
	// Thumbnail is a local path or URL of the group image.
	Thumbnail string `json:"thumbnail,omitempty" yaml:"thumbnail,omitempty"`
}

// GroupUpdateRequest represents a request to update a group. Empty fields
// are left unchanged.
type GroupUpdateRequest struct {
	Title            string   `json:"title,omitempty"              yaml:"title,omitempty"`
	Tags             []string `json:"tags,omitempty"               yaml:"tags,omitempty"`
	Description      string   `json:"description,omitempty"        yaml:"description,omitempty"`
	Snippet          string   `json:"snippet,omitempty"            yaml:"snippet,omitempty"`
	Access           string   `json:"access,omitempty"             yaml:"access,omitempty"`
	SortField        string   `json:"sort_field,omitempty"         yaml:"sort_field,omitempty"`
	SortOrder        string   `json:"sort_order,omitempty"         yaml:"sort_order,omitempty"`
	IsInvitationOnly *bool    `json:"is_invitation_only,omitempty" yaml:"is_invitation_only,omitempty"`
	IsViewOnly       *bool    `json:"is_view_only,omitempty"       yaml:"is_view_only,omitempty"`
	Thumbnail        string   `json:"thumbnail,omitempty"          yaml:"thumbnail,omitempty"`
}

// GroupInviteOptions controls group invitations.
type GroupInviteOptions struct {
	// Role defaults to "group_member".
	Role string `json:"role,omitempty" yaml:"role,omitempty"`
	// Expiration is the invitation lifetime in minutes. Defaults to 10080.
	Expiration int `json:"expiration,omitempty" yaml:"expiration,omitempty"`
}

// UserUpdateRequest represents a request to update a user. Empty fields are
// left unchanged.
type UserUpdateRequest struct {
	Access        string   `json:"access,omitempty"         yaml:"access,omitempty"`
	PreferredView string   `json:"preferred_view,omitempty" yaml:"preferred_view,omitempty"`
	Description   string   `json:"description,omitempty"    yaml:"description,omitempty"`
	Tags          []string `json:"tags,omitempty"           yaml:"tags,omitempty"`
	FullName      string   `json:"full_name,omitempty"      yaml:"full_name,omitempty"`
	Email         string   `json:"email,omitempty"          yaml:"email,omitempty"`
	Culture       string   `json:"culture,omitempty"        yaml:"culture,omitempty"`
	Region        string   `json:"region,omitempty"         yaml:"region,omitempty"`
	Thumbnail     string   `json:"thumbnail,omitempty"      yaml:"thumbnail,omitempty"`
}

// UserDeleteOptions controls what happens to a user's content on deletion.
type UserDeleteOptions struct {
	// Cascade reassigns (when ReassignTo is set) or deletes the user's items
	// and groups before deleting the user.
	Cascade bool `json:"cascade,omitempty" yaml:"cascade,omitempty"`
	// ReassignTo is the new owner of the user's content.
	ReassignTo string `json:"reassign_to,omitempty" yaml:"reassign_to,omitempty"`
}

// UserResetRequest represents a password or security question reset.
type UserResetRequest struct {
	Password            string `json:"-"                                yaml:"-"`
	NewPassword         string `json:"-"                                yaml:"-"`
	NewSecurityQuestion int    `json:"new_security_question,omitempty" yaml:"new_security_question,omitempty"`
	NewSecurityAnswer   string `json:"-"                                yaml:"-"`
}

// SignupRequest represents a self-signup.
type SignupRequest struct {
	Username string `json:"username"  yaml:"username"`
	Password string `json:"-"         yaml:"-"`
	FullName string `json:"full_name" yaml:"full_name"`
	Email    string `json:"email"     yaml:"email"`
}

// ItemCreateRequest represents a request to add an item.
type ItemCreateRequest struct {
	// Properties are sent as form fields, e.g. title, type, tags.
	Properties Object `json:"properties" yaml:"properties"`
	// Data, Thumbnail and Metadata are local paths or URLs.
	Data      string `json:"data,omitempty"      yaml:"data,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty" yaml:"thumbnail,omitempty"`
	Metadata  string `json:"metadata,omitempty"  yaml:"metadata,omitempty"`
	// Owner defaults to the logged-in user.
	Owner string `json:"owner,omitempty" yaml:"owner,omitempty"`
	// Folder is the id of the target folder; empty means the root folder.
	Folder string `json:"folder,omitempty" yaml:"folder,omitempty"`
}

// ItemDeleteOptions locates the item to delete.
type ItemDeleteOptions struct {
	// Owner defaults to the logged-in user.
	Owner string `json:"owner,omitempty" yaml:"owner,omitempty"`
	// Folder is the id of the folder holding the item.
	Folder string `json:"folder,omitempty" yaml:"folder,omitempty"`
}

// UserItem is an item read through its owner's content, with sharing
// information and the folder it was found in.
type UserItem struct {
	Item     Object `json:"item"      yaml:"item"`
	Sharing  Object `json:"sharing"   yaml:"sharing"`
	FolderID string `json:"folder_id" yaml:"folder_id"`
}

// GroupsClient defines operations on groups.
type GroupsClient interface {
	Create(ctx context.Context, request *GroupCreateRequest) (string, error)
	CreateFromObject(ctx context.Context, group Object, thumbnail string) (string, error)
	Get(ctx context.Context, groupID string) (Object, error)
	Thumbnail(ctx context.Context, groupID string) ([]byte, error)
	Members(ctx context.Context, groupID string) (Object, error)
	Update(ctx context.Context, groupID string, request *GroupUpdateRequest) (bool, error)
	Delete(ctx context.Context, groupID string) (bool, error)
	AddUsers(ctx context.Context, groupID string, usernames []string) (Object, error)
	RemoveUsers(ctx context.Context, groupID string, usernames []string) (Object, error)
	Invite(ctx context.Context, groupID string, usernames []string, opts *GroupInviteOptions) (bool, error)
	Leave(ctx context.Context, groupID string) (bool, error)
	Reassign(ctx context.Context, groupID, targetOwner string) (bool, error)
	Search(ctx context.Context, query string, opts *SearchOptions) ([]Object, error)
}

// UsersClient defines operations on users.
type UsersClient interface {
	Get(ctx context.Context, username string) (Object, error)
	Update(ctx context.Context, username string, request *UserUpdateRequest) (bool, error)
	UpdateRole(ctx context.Context, username, role string) (bool, error)
	Delete(ctx context.Context, username string, opts *UserDeleteOptions) (bool, error)
	Reassign(ctx context.Context, username, targetUsername string) (bool, error)
	Reset(ctx context.Context, username string, request *UserResetRequest) (bool, error)
	Signup(ctx context.Context, request *SignupRequest) (bool, error)
	Search(ctx context.Context, query string, opts *SearchOptions) ([]Object, error)
	ListOrg(ctx context.Context, maxUsers int) ([]Object, error)
	ListInvitations(ctx context.Context, maxInvitations int) ([]Object, error)
}

// ItemsClient defines operations on items.
type ItemsClient interface {
	Add(ctx context.Context, request *ItemCreateRequest) (string, error)
	Get(ctx context.Context, itemID string) (Object, error)
	Data(ctx context.Context, itemID, destination string) (string, error)
	UserItem(ctx context.Context, itemID, owner, folderID string) (*UserItem, error)
	Delete(ctx context.Context, itemID string, opts *ItemDeleteOptions) (bool, error)
	DeleteMany(ctx context.Context, owner string, itemIDs []string) ([]Object, error)
	Reassign(ctx context.Context, itemID, targetOwner, targetFolder string) (Object, error)
	Search(ctx context.Context, query string, opts *SearchOptions) ([]Object, error)
}

// FoldersClient defines operations on a user's folders.
type FoldersClient interface {
	List(ctx context.Context, owner string) ([]Object, error)
	Create(ctx context.Context, owner, title string) (Object, error)
	Delete(ctx context.Context, owner, folderID string) (bool, error)
	ID(ctx context.Context, owner, name string) (string, error)
}
