package constants

import "time"

// ClientVersion is reported in the default User-Agent.
const ClientVersion = "1.0.0"

// DefaultUserAgent is sent with every request unless overridden.
const DefaultUserAgent = "portal-client/" + ClientVersion

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests made by the CLI.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for quick operations.
	ShortHTTPTimeout = 10 * time.Second
)

// Retry limits for transient failures.
const (
	// DefaultRetryMax is the number of retries used by the CLI.
	DefaultRetryMax = 3

	// DefaultRetryWaitMin is the minimum wait time between retries.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 10 * time.Second
)

// REST paths, relative to the portal REST root unless noted.
const (
	// RESTPath is appended to the normalized portal URL.
	RESTPath = "sharing/rest/"

	// LegacyRESTPath is the REST root of portals older than 1.6.2, relative
	// to the portal URL.
	LegacyRESTPath = "sharing/"

	// GenerateTokenPath issues tokens.
	GenerateTokenPath = "generateToken"

	// PortalSelfPath describes the portal.
	PortalSelfPath = "portals/self"

	// AccountSelfPath describes the portal on versions older than 1.6.2.
	AccountSelfPath = "accounts/self"

	// SearchPath searches items.
	SearchPath = "search"

	// CommunityGroupsPath searches groups and prefixes group paths.
	CommunityGroupsPath = "community/groups"

	// CommunityUsersPath searches users and prefixes user paths.
	CommunityUsersPath = "community/users"

	// CreateGroupPath creates groups.
	CreateGroupPath = "community/createGroup"

	// SignupPath creates accounts by self-signup.
	SignupPath = "community/signUp"

	// UpdateUserRolePath changes a user's role.
	UpdateUserRolePath = "portals/self/updateuserrole"

	// OrgUsersPath lists the users of the organization.
	OrgUsersPath = "portals/self/users"

	// InvitationsPath lists pending invitations.
	InvitationsPath = "portals/self/invitations"

	// ContentUsersPath prefixes a user's content.
	ContentUsersPath = "content/users"

	// ContentItemsPath prefixes items addressed by id.
	ContentItemsPath = "content/items"
)

// Portal identification.
const (
	// PortalModeMultitenant is the portalMode of a multitenant portal.
	PortalModeMultitenant = "multitenant"

	// PublicServiceName is the portalName of the hosted public service.
	PublicServiceName = "ArcGIS Online"

	// LegacyVersion is assumed when only the legacy REST root answers.
	LegacyVersion = "1.6.2"
)

// PreV21Versions lists portal versions older than 2.1.
var PreV21Versions = []string{"1.6.2", "2.0"}

// Boolean string constants.
const (
	// BooleanTrue string representation.
	BooleanTrue = "true"

	// BooleanFalse string representation.
	BooleanFalse = "false"
)

// Format constants.
const (
	// FormatTable for table output format.
	FormatTable = "table"

	// FormatJSON for JSON output format.
	FormatJSON = "json"

	// FormatYAML for YAML output format.
	FormatYAML = "yaml"
)

// UI and display constants.
const (
	// CheckMarkSymbol is used to indicate current/active items.
	CheckMarkSymbol = "✓"

	// NotAvailable is used when information is not available.
	NotAvailable = "N/A"

	// MaskedSecret is used to hide sensitive information.
	MaskedSecret = "***"

	// JSONIndentSize is the number of spaces for JSON indentation.
	JSONIndentSize = 2

	// DescriptionDisplayLength is the default length for displaying descriptions.
	DescriptionDisplayLength = 60

	// KeyValueSplitParts is the number of parts when splitting key=value strings.
	KeyValueSplitParts = 2
)

// Sort order constants.
const (
	// SortOrderAsc for ascending sort.
	SortOrderAsc = "asc"

	// SortOrderDesc for descending sort.
	SortOrderDesc = "desc"
)
