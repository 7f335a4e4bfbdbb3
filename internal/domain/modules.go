package domain

// ModuleKey identifies one toggleable hardening module.
type ModuleKey string

const (
	ModuleDisableGutenberg     ModuleKey = "disable-gutenberg"
	ModuleDisableComments      ModuleKey = "disable-comments"
	ModuleHideAdminBar         ModuleKey = "hide-admin-bar"
	ModuleCleanHead            ModuleKey = "clean-head"
	ModuleDisableEmojis        ModuleKey = "disable-emojis"
	ModuleSVGSupport           ModuleKey = "svg-support"
	ModuleDisableXMLRPC        ModuleKey = "disable-xmlrpc"
	ModuleDisableAutoUpdates   ModuleKey = "disable-auto-updates"
	ModuleEnableDebug          ModuleKey = "enable-debug"
	ModulePostCloner           ModuleKey = "post-cloner"
	ModuleCustomLoginURL       ModuleKey = "custom-login-url"
	ModuleCustomLoginLogo      ModuleKey = "custom-login-logo"
	ModuleDisableRSSFeeds      ModuleKey = "disable-rss-feeds"
	ModuleDisableAuthorArchive ModuleKey = "disable-author-archives"
	ModuleDisableRESTGuests    ModuleKey = "disable-rest-api-guests"
	ModuleLimitLoginAttempts   ModuleKey = "limit-login-attempts"
	ModuleMaintenanceMode      ModuleKey = "maintenance-mode"
	ModuleDuplicateMenu        ModuleKey = "duplicate-menu"
	ModuleSMTPMail             ModuleKey = "smtp-mail"
)

type ModuleInfo struct {
	Key         ModuleKey
	Title       string
	Description string
}

type Module struct {
	ModuleInfo
	Enabled bool
}

var moduleRegistry = []ModuleInfo{
	{ModuleDisableGutenberg, "Disable Gutenberg", "Replaces the block editor with the classic editor."},
	{ModuleDisableComments, "Disable Comments", "Completely removes comments functionality."},
	{ModuleHideAdminBar, "Hide Admin Bar", "Hides the admin bar for non-administrator users."},
	{ModuleCleanHead, "Clean Head", "Removes unnecessary meta tags from the document head."},
	{ModuleDisableEmojis, "Disable Emojis", "Removes emoji scripts and styles."},
	{ModuleSVGSupport, "Enable SVG Support", "Allows uploading SVG files to the media library."},
	{ModuleDisableXMLRPC, "Disable XML-RPC", "Disables XML-RPC for better security."},
	{ModuleDisableAutoUpdates, "Disable Auto Updates", "Disables automatic updates for core, plugins, and themes."},
	{ModuleEnableDebug, "Enable Debug Mode", "Enables error reporting, display, and logging for troubleshooting."},
	{ModulePostCloner, "Post Cloner", "Adds a Clone action to duplicate posts, pages, and CPTs."},
	{ModuleCustomLoginURL, "Custom Login URL", "Replaces /wp-login.php with a custom path to reduce brute-force attacks."},
	{ModuleCustomLoginLogo, "Custom Login Logo", "Replaces the WordPress logo on the login page with a custom image."},
	{ModuleDisableRSSFeeds, "Disable RSS Feeds", "Disables all RSS and Atom feed endpoints."},
	{ModuleDisableAuthorArchive, "Disable Author Archives", "Prevents user enumeration through author archive pages."},
	{ModuleDisableRESTGuests, "Disable REST API for Guests", "Restricts REST API access to authenticated users only."},
	{ModuleLimitLoginAttempts, "Limit Login Attempts", "Blocks an IP address after failed login attempts."},
	{ModuleMaintenanceMode, "Maintenance Mode", "Displays a maintenance page for non-admin visitors."},
	{ModuleDuplicateMenu, "Duplicate Menu", "Adds a Duplicate action to clone nav menus with all items."},
	{ModuleSMTPMail, "SMTP Mail", "Configures WordPress to send emails through SMTP."},
}

// Modules returns the registry in display order. The slice is a copy.
func Modules() []ModuleInfo {
	out := make([]ModuleInfo, len(moduleRegistry))
	copy(out, moduleRegistry)
	return out
}

func LookupModule(key ModuleKey) (ModuleInfo, bool) {
	for _, m := range moduleRegistry {
		if m.Key == key {
			return m, true
		}
	}
	return ModuleInfo{}, false
}
