package classifier

import (
	"regexp"

	"permission_service/internal/models"
)

// ClassifierConfig collects the empirically tuned knobs of the role analysis
// so operators can retune them without a rebuild. The thresholds here are
// load-bearing: OwnerScoreThreshold and NameConfidenceThreshold decide when
// the classifier trusts itself versus asking for human review.
type ClassifierConfig struct {
	// MaxChannels bounds the per-guild channel scan so one classification
	// pass cannot stall on guilds with thousands of channels.
	MaxChannels int

	// MaxCategories bounds the category overwrite scan.
	MaxCategories int

	// OwnerScoreThreshold is the multi-factor owner-role score a role must
	// strictly exceed to be treated as the owner role.
	OwnerScoreThreshold float64

	// NameConfidenceThreshold is the name-match confidence a role must
	// strictly exceed before the name decides its level; below it, position
	// in the hierarchy decides instead.
	NameConfidenceThreshold float64

	// VerificationAdoptionRate is the minimum share of guild members that
	// must hold a role before it can count as the guild's base access role.
	VerificationAdoptionRate float64

	// CosmeticMemberFloor is the member count above which a permissionless
	// role is assumed to be a cosmetic/reaction role.
	CosmeticMemberFloor int

	// SymbolNameRatio is the share of non-alphanumeric characters in a raw
	// role name past which the role reads as decoration.
	SymbolNameRatio float64

	// TopPositionShare marks the top slice of the guild hierarchy treated
	// as authority when paired with any permission.
	TopPositionShare float64
}

// DefaultClassifierConfig returns the tuned defaults.
func DefaultClassifierConfig() *ClassifierConfig {
	return &ClassifierConfig{
		MaxChannels:              50,
		MaxCategories:            10,
		OwnerScoreThreshold:      0.6,
		NameConfidenceThreshold:  0.7,
		VerificationAdoptionRate: 0.4,
		CosmeticMemberFloor:      5,
		SymbolNameRatio:          0.7,
		TopPositionShare:         0.3,
	}
}

// permissionWeights scores platform permission flags by how much real
// authority they imply. Used for authority categorization and confidence,
// never directly for level assignment.
var permissionWeights = map[models.PermissionBits]int{
	models.PermAdministrator:  100,
	models.PermManageGuild:    80,
	models.PermManageRoles:    70,
	models.PermManageChannels: 60,

	models.PermBanMembers:      50,
	models.PermKickMembers:     45,
	models.PermModerateMembers: 40,
	models.PermManageMessages:  35,
	models.PermManageNicknames: 30,
	models.PermMuteMembers:     25,
	models.PermDeafenMembers:   25,
	models.PermMoveMembers:     20,

	models.PermCreatePrivateThreads: 15,
	models.PermCreatePublicThreads:  10,
	models.PermExternalEmojis:       8,
	models.PermExternalStickers:     8,
	models.PermAttachFiles:          5,
	models.PermEmbedLinks:           5,
	models.PermUseExternalEmojis:    5,
}

// authorityPermissions are the flags that by themselves mark a role as part
// of the human hierarchy.
const authorityPermissions = models.PermAdministrator | models.PermManageGuild |
	models.PermManageRoles | models.PermManageChannels | models.PermKickMembers |
	models.PermBanMembers | models.PermModerateMembers | models.PermManageMessages |
	models.PermMuteMembers | models.PermDeafenMembers | models.PermMoveMembers

// cosmeticPermissions are display-only flags that say nothing about rank.
const cosmeticPermissions = models.PermExternalEmojis | models.PermExternalStickers |
	models.PermAttachFiles | models.PermEmbedLinks | models.PermUseExternalEmojis |
	models.PermChangeNickname

// namePattern pairs a regexp with its confidence. exclude disqualifies the
// match when the name also contains that substring (regexp here has no
// lookahead, so "admin but not mod" is expressed as an exclusion term).
type namePattern struct {
	re         *regexp.Regexp
	confidence float64
	exclude    string
}

// levelNamePatterns pairs one universal level with the name patterns that
// suggest it.
type levelNamePatterns struct {
	level    models.PermissionLevel
	patterns []namePattern
}

// authorityNamePatterns lists each universal level with the name patterns
// that suggest it, highest level first. The single highest-confidence match
// across every level wins; on equal confidence the earlier (higher) level
// keeps the match. Patterns run against normalized names only.
var authorityNamePatterns = []levelNamePatterns{
	{models.LevelOwner, []namePattern{
		{regexp.MustCompile(`\bowner\b`), 0.95, ""},
		{regexp.MustCompile(`\bfounder\b`), 0.90, ""},
		{regexp.MustCompile(`\bcreator\b`), 0.85, ""},
	}},
	{models.LevelLeadAdmin, []namePattern{
		{regexp.MustCompile(`\bhead.*admin\b`), 0.95, ""},
		{regexp.MustCompile(`\bsenior.*admin\b`), 0.95, ""},
		{regexp.MustCompile(`\blead.*admin\b`), 0.95, ""},
		{regexp.MustCompile(`\bchief.*admin\b`), 0.90, ""},
		{regexp.MustCompile(`\bsuper.*admin\b`), 0.90, ""},
		{regexp.MustCompile(`\bco.*owner\b`), 0.85, ""},
	}},
	{models.LevelAdmin, []namePattern{
		{regexp.MustCompile(`\badmin\b`), 0.90, "mod"},
		{regexp.MustCompile(`\badministrator\b`), 0.95, ""},
		{regexp.MustCompile(`\bmanager\b`), 0.75, ""},
		{regexp.MustCompile(`\bexecutive\b`), 0.70, ""},
		{regexp.MustCompile(`\bdirector\b`), 0.70, ""},
		{regexp.MustCompile(`\bleader\b`), 0.65, ""},
	}},
	{models.LevelLeadMod, []namePattern{
		{regexp.MustCompile(`\bhead.*mod\b`), 0.95, ""},
		{regexp.MustCompile(`\bsenior.*mod\b`), 0.95, ""},
		{regexp.MustCompile(`\blead.*mod\b`), 0.95, ""},
		{regexp.MustCompile(`\bchief.*mod\b`), 0.90, ""},
		{regexp.MustCompile(`\bsuper.*mod\b`), 0.90, ""},
		{regexp.MustCompile(`\bmaster.*mod\b`), 0.85, ""},
	}},
	{models.LevelModerator, []namePattern{
		{regexp.MustCompile(`\bmoderator\b`), 0.90, ""},
		{regexp.MustCompile(`\bmod\b`), 0.85, "admin"},
		{regexp.MustCompile(`\bhelper\b`), 0.70, ""},
		{regexp.MustCompile(`\bassistant\b`), 0.65, ""},
		{regexp.MustCompile(`\btrainee.*mod\b`), 0.60, ""},
		{regexp.MustCompile(`\bjunior.*mod\b`), 0.60, ""},
		{regexp.MustCompile(`\btrial.*mod\b`), 0.55, ""},
	}},
	{models.LevelMember, []namePattern{
		{regexp.MustCompile(`\bmember\b`), 0.85, ""},
		{regexp.MustCompile(`\bvip\b`), 0.80, ""},
		{regexp.MustCompile(`\bverified\b`), 0.75, ""},
		{regexp.MustCompile(`\btrusted\b`), 0.75, ""},
		{regexp.MustCompile(`\bsupporter\b`), 0.70, ""},
		{regexp.MustCompile(`\bdonator\b`), 0.70, ""},
		{regexp.MustCompile(`\bregular\b`), 0.65, ""},
		{regexp.MustCompile(`\bactive\b`), 0.60, ""},
	}},
}

// Keyword tables for the classification cascade. All matched against
// normalized names.
var (
	integrationKeywords  = []string{"booster", "boost", "nitro", "premium"}
	authorityKeywords    = []string{"admin", "administrator", "mod", "moderator", "owner", "founder", "staff", "leader", "manager", "executive", "director"}
	verificationKeywords = []string{"member", "verified", "citizen", "user"}
	teamKeywords         = []string{"team", "red", "blue", "green", "yellow", "purple", "orange", "squad"}
	temporaryKeywords    = []string{"event", "contest", "giveaway", "temp", "trial", "beta", "test"}

	coreChannelKeywords = []string{"general", "main", "chat", "discussion", "announcements", "staff", "admin", "mod", "member", "welcome"}
	ticketKeywords      = []string{"ticket", "support", "help", "claim", "report"}
	archiveKeywords     = []string{"archive", "expired", "old", "inactive", "closed"}
	botChannelKeywords  = []string{"bot-", "logs", "audit", "commands", "spam", "automod"}
	tempChannelKeywords = []string{"temp-", "event-", "contest-", "giveaway"}

	ticketNumberPattern = regexp.MustCompile(`\b\d{3,}\b`)

	// Reaction-role patterns: age ranges, life status, region/timezone and
	// identity terms that communities hand out as self-assign cosmetics.
	demographicPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d{2}[+-]`),
		regexp.MustCompile(`\d{2}-\d{2}`),
		regexp.MustCompile(`\b(teen|adult|senior)\b`),
		regexp.MustCompile(`\b(employed|unemployed|student|retired|working|university|college)\b`),
		regexp.MustCompile(`\bhigh.*school\b`),
		regexp.MustCompile(`\b(male|female|single|married|taken)\b`),
		regexp.MustCompile(`\b(est|pst|cst|mst|utc|gmt|aest|jst|eet|cet|brt)\b`),
		regexp.MustCompile(`\b(usa|canada|europe|asia)\b`),
		regexp.MustCompile(`\b(normie|weeb|gamer)\b`),
		regexp.MustCompile(`\b(newbie|resident|national|immigrant)\b`),
		regexp.MustCompile(`\b(trans|gay|lesbian|bi|queer)\b`),
	}
)
