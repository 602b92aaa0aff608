package classifier

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"unicode"

	"permission_service/internal/models"
	"permission_service/internal/textnorm"
)

// RoleClassifier sorts a guild's uncurated roles into functional types and
// assigns universal permission levels to the authority subset, name-pattern
// first with hierarchy position as the fallback signal.
type RoleClassifier struct {
	config *ClassifierConfig
}

// NewRoleClassifier creates a classifier. A nil config uses the defaults.
func NewRoleClassifier(config *ClassifierConfig) *RoleClassifier {
	if config == nil {
		config = DefaultClassifierConfig()
	}
	return &RoleClassifier{config: config}
}

// GuildAnalysis is the outcome of one full guild role analysis.
type GuildAnalysis struct {
	ConfidentMappings   map[int64]models.PermissionLevel
	UncertainRoles      []*models.RoleSnapshot
	RoleClassifications map[int64]models.RoleType
	Analyses            []*models.RoleAnalysis
}

// AnalyzeGuildRoles classifies every role in the guild, then applies
// hierarchy logic to the authority subset only. The everyone role is skipped.
func (c *RoleClassifier) AnalyzeGuildRoles(guild *models.GuildSnapshot) *GuildAnalysis {
	log.Printf("Analyzing %d roles for guild %q", len(guild.Roles), guild.Name)

	channels := NewChannelAnalysis(guild, c.config)

	result := &GuildAnalysis{
		ConfidentMappings:   make(map[int64]models.PermissionLevel),
		RoleClassifications: make(map[int64]models.RoleType),
	}

	var authorityRoles []*models.RoleSnapshot
	for _, role := range guild.Roles {
		if role.IsEveryone {
			continue
		}
		analysis := c.analyzeRole(role, guild, channels)
		result.Analyses = append(result.Analyses, analysis)
		result.RoleClassifications[role.ID] = analysis.Type
		if analysis.Type == models.RoleAuthority {
			authorityRoles = append(authorityRoles, role)
		}
	}

	c.applyHierarchy(authorityRoles, guild, channels, result)

	log.Printf("Classification complete for guild %q: %d authority mappings, %d uncertain, %d classified",
		guild.Name, len(result.ConfidentMappings), len(result.UncertainRoles), len(result.RoleClassifications))
	return result
}

// analyzeRole produces the full analysis record for a single role.
func (c *RoleClassifier) analyzeRole(role *models.RoleSnapshot, guild *models.GuildSnapshot, channels *ChannelAnalysis) *models.RoleAnalysis {
	analysis := &models.RoleAnalysis{
		RoleID:              role.ID,
		RoleName:            role.Name,
		Type:                c.ClassifyRoleType(role, guild, channels),
		Category:            models.CategoryUnknown,
		MemberCount:         role.MemberCount(),
		IsManaged:           role.Managed,
		HasChannelOverrides: channels.HasChannelOverride(role.ID),
		IsOwnerRole:         c.isOwnerRole(role, guild),
	}

	if analysis.Type == models.RoleAuthority {
		analysis.PermissionScore = permissionScore(role.Permissions)

		nameLevel, confidence := c.analyzeAuthorityName(role.Name)
		if confidence > 0 {
			analysis.SuggestedLevel = nameLevel
			analysis.NameIndicators = append(analysis.NameIndicators,
				fmt.Sprintf("%s(%.2f)", nameLevel, confidence))
		}

		analysis.Category = categorizeAuthority(role, analysis.PermissionScore, nameLevel, confidence)
		analysis.Confidence = c.confidence(role, guild, analysis.PermissionScore)
	}

	return analysis
}

// roleRule is one step of the classification cascade. Rules run in order and
// the first match wins, which keeps precedence auditable.
type roleRule struct {
	tag   models.RoleType
	match func(*roleContext) bool
}

type roleContext struct {
	role       *models.RoleSnapshot
	guild      *models.GuildSnapshot
	channels   *ChannelAnalysis
	classifier *RoleClassifier
	normalized string
}

func (ctx *roleContext) hasOverride() bool {
	return ctx.channels.HasChannelOverride(ctx.role.ID)
}

func (ctx *roleContext) hasAuthoritySignals() bool {
	return containsAny(ctx.normalized, authorityKeywords) ||
		containsAny(ctx.normalized, []string{"member"}) ||
		ctx.classifier.hasAuthorityPermissions(ctx.role, ctx.guild) ||
		ctx.classifier.isVerificationRole(ctx.role, ctx.guild, ctx.channels)
}

var roleRules = []roleRule{
	// Bot-managed roles are never part of the human hierarchy.
	{models.RoleBot, func(ctx *roleContext) bool {
		return ctx.role.Managed || ctx.role.BotTag
	}},
	// Platform integrations (boost/premium perks) likewise.
	{models.RoleIntegration, func(ctx *roleContext) bool {
		return ctx.role.Integration || containsAny(ctx.normalized, integrationKeywords)
	}},
	// A channel overwrite marks a functional role, unless the role also
	// carries authority signals; overrides alone never disqualify authority.
	{models.RoleFunctional, func(ctx *roleContext) bool {
		return ctx.hasOverride() && !ctx.hasAuthoritySignals()
	}},
	{models.RoleAuthority, func(ctx *roleContext) bool {
		return ctx.classifier.hasAuthorityPermissions(ctx.role, ctx.guild)
	}},
	{models.RoleAuthority, func(ctx *roleContext) bool {
		return containsAny(ctx.normalized, authorityKeywords)
	}},
	{models.RoleAuthority, func(ctx *roleContext) bool {
		return ctx.classifier.isVerificationRole(ctx.role, ctx.guild, ctx.channels)
	}},
	// A single-member role is either a bot's personal role or a vanity role.
	{models.RoleBot, func(ctx *roleContext) bool {
		return ctx.role.MemberCount() == 1 && singleMemberIsBot(ctx.role, ctx.guild)
	}},
	{models.RoleCosmetic, func(ctx *roleContext) bool {
		return ctx.role.MemberCount() == 1 &&
			ctx.role.Permissions&authorityPermissions == 0 &&
			!ctx.hasOverride()
	}},
	// Permissionless roles matching reaction-role demographics, or handed to
	// many members, are cosmetics.
	{models.RoleCosmetic, func(ctx *roleContext) bool {
		if !onlyCosmeticPermissions(ctx.role.Permissions) {
			return false
		}
		for _, pattern := range demographicPatterns {
			if pattern.MatchString(ctx.normalized) {
				return true
			}
		}
		return ctx.role.MemberCount() > ctx.classifier.config.CosmeticMemberFloor
	}},
	{models.RoleCosmetic, func(ctx *roleContext) bool {
		return containsAny(ctx.normalized, teamKeywords)
	}},
	{models.RoleTemporary, func(ctx *roleContext) bool {
		return containsAny(ctx.normalized, temporaryKeywords)
	}},
	// Names that are mostly symbols/emoji are decoration.
	{models.RoleCosmetic, func(ctx *roleContext) bool {
		return symbolRatio(ctx.role.Name) >= ctx.classifier.config.SymbolNameRatio
	}},
}

// ClassifyRoleType runs the rule cascade and returns the first matching
// type, or UNKNOWN when nothing fires. Deterministic for an unchanged
// snapshot.
func (c *RoleClassifier) ClassifyRoleType(role *models.RoleSnapshot, guild *models.GuildSnapshot, channels *ChannelAnalysis) models.RoleType {
	if channels == nil {
		channels = NewChannelAnalysis(guild, c.config)
	}
	ctx := &roleContext{
		role:       role,
		guild:      guild,
		channels:   channels,
		classifier: c,
		normalized: textnorm.Normalize(role.Name),
	}

	for _, rule := range roleRules {
		if rule.match(ctx) {
			return rule.tag
		}
	}
	return models.RoleUnknown
}

// hasAuthorityPermissions reports whether the role carries any flag that
// implies hierarchical authority, or sits in the top slice of the hierarchy
// while holding at least one permission.
func (c *RoleClassifier) hasAuthorityPermissions(role *models.RoleSnapshot, guild *models.GuildSnapshot) bool {
	if role.Permissions&authorityPermissions != 0 {
		return true
	}

	total := len(guild.Roles)
	if total > 1 {
		relative := float64(role.Position) / float64(total)
		if relative > 1-c.config.TopPositionShare && !role.Permissions.None() {
			return true
		}
	}
	return false
}

// isVerificationRole detects the guild's one-click base access role: broad
// adoption, at least one channel overwrite, and a membership-flavored name.
func (c *RoleClassifier) isVerificationRole(role *models.RoleSnapshot, guild *models.GuildSnapshot, channels *ChannelAnalysis) bool {
	memberCount := guild.MemberCount
	if memberCount < 1 {
		memberCount = 1
	}
	adoption := float64(role.MemberCount()) / float64(memberCount)

	return adoption >= c.config.VerificationAdoptionRate &&
		channels.HasChannelOverride(role.ID) &&
		containsAny(textnorm.Normalize(role.Name), verificationKeywords)
}

// isOwnerRole scores multiple weak signals; the role counts as the owner
// role only when the combined score strictly exceeds the threshold, so no
// single factor can decide.
func (c *RoleClassifier) isOwnerRole(role *models.RoleSnapshot, guild *models.GuildSnapshot) bool {
	score := 0.0

	if role.HasMember(guild.OwnerID) {
		score += 0.4
	}

	if total := len(guild.Roles); total > 1 {
		if float64(role.Position)/float64(total) > 0.9 {
			score += 0.3
		}
	}

	if role.Permissions.Has(models.PermAdministrator) {
		score += 0.2
	}

	if count := role.MemberCount(); count >= 1 && count <= 3 {
		score += 0.1
	}

	return score > c.config.OwnerScoreThreshold
}

// singleMemberIsBot resolves the role's lone holder against the member list.
// Unresolvable members are treated as human.
func singleMemberIsBot(role *models.RoleSnapshot, guild *models.GuildSnapshot) bool {
	if len(role.MemberIDs) != 1 {
		return false
	}
	member := guild.Member(role.MemberIDs[0])
	return member != nil && member.Bot
}

// analyzeAuthorityName finds the single best-confidence level suggested by
// the role's normalized name across every level's pattern list. The table is
// ordered highest level first, so equal-confidence matches at different
// levels resolve to the higher level.
func (c *RoleClassifier) analyzeAuthorityName(roleName string) (models.PermissionLevel, float64) {
	normalized := textnorm.Normalize(roleName)

	bestLevel := models.LevelEveryone
	bestConfidence := 0.0
	for _, group := range authorityNamePatterns {
		for _, pattern := range group.patterns {
			if !pattern.re.MatchString(normalized) {
				continue
			}
			if pattern.exclude != "" && strings.Contains(normalized, pattern.exclude) {
				continue
			}
			if pattern.confidence > bestConfidence {
				bestLevel = group.level
				bestConfidence = pattern.confidence
			}
		}
	}
	return bestLevel, bestConfidence
}

// permissionScore is the weighted sum of the role's permission flags.
func permissionScore(bits models.PermissionBits) int {
	score := 0
	for flag, weight := range permissionWeights {
		if bits.Has(flag) {
			score += weight
		}
	}
	return score
}

// onlyCosmeticPermissions reports whether the role holds no permissions at
// all, or nothing beyond the cosmetic set.
func onlyCosmeticPermissions(bits models.PermissionBits) bool {
	return bits&authorityPermissions == 0 && bits&^cosmeticPermissions == 0
}

// symbolRatio is the share of the raw name's characters that are neither
// alphanumeric nor whitespace. Emoji-heavy names score high.
func symbolRatio(name string) float64 {
	if name == "" {
		return 0
	}
	total := 0
	symbols := 0
	for _, r := range name {
		total++
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			symbols++
		}
	}
	return float64(symbols) / float64(total)
}

// categorizeAuthority groups an authority role by function. Informational.
func categorizeAuthority(role *models.RoleSnapshot, score int, nameLevel models.PermissionLevel, nameConfidence float64) models.RoleCategory {
	switch {
	case role.Permissions.Has(models.PermAdministrator):
		return models.CategoryAdministrative
	case score >= 15:
		return models.CategoryModeration
	case score >= 5:
		return models.CategoryTrustedMember
	case nameConfidence > 0 && nameLevel >= models.LevelMember:
		return models.CategorySpecial
	default:
		return models.CategoryUnknown
	}
}

// confidence estimates how sure the analysis is about an authority role,
// clamped to [0, 1].
func (c *RoleClassifier) confidence(role *models.RoleSnapshot, guild *models.GuildSnapshot, score int) float64 {
	confidence := 0.0

	switch {
	case role.Permissions.Has(models.PermAdministrator):
		confidence += 0.8
	case score >= 40:
		confidence += 0.7
	case score >= 15:
		confidence += 0.5
	case score >= 5:
		confidence += 0.3
	}

	if _, nameConfidence := c.analyzeAuthorityName(role.Name); nameConfidence > 0 {
		confidence += nameConfidence * 0.4
	}

	if !role.Managed && !role.Integration {
		confidence += 0.1
	}

	if total := len(guild.Roles); total > 1 {
		relative := float64(role.Position) / float64(total)
		if relative > 0.8 {
			confidence += 0.1
		} else if relative < 0.2 {
			confidence += 0.05
		}
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

// applyHierarchy assigns levels to the authority subset: owner flag first,
// then confident name matches, then position percentile. Roles that none of
// the three can place are surfaced for human review rather than guessed.
func (c *RoleClassifier) applyHierarchy(authorityRoles []*models.RoleSnapshot, guild *models.GuildSnapshot, channels *ChannelAnalysis, result *GuildAnalysis) {
	sorted := make([]*models.RoleSnapshot, len(authorityRoles))
	copy(sorted, authorityRoles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Position > sorted[j].Position
	})

	for _, role := range authorityRoles {
		if c.isOwnerRole(role, guild) {
			result.ConfidentMappings[role.ID] = models.LevelOwner
			continue
		}

		nameLevel, confidence := c.analyzeAuthorityName(role.Name)
		if confidence > c.config.NameConfidenceThreshold {
			result.ConfidentMappings[role.ID] = nameLevel
			continue
		}

		if level, ok := positionLevel(role, sorted); ok {
			result.ConfidentMappings[role.ID] = level
		} else {
			result.UncertainRoles = append(result.UncertainRoles, role)
		}
	}
}

// positionLevel maps a role's rank among the authority roles (sorted by
// position, highest first) to a level bracket. A lone authority role is
// assumed to be the admin role.
func positionLevel(role *models.RoleSnapshot, sorted []*models.RoleSnapshot) (models.PermissionLevel, bool) {
	index := -1
	for i, candidate := range sorted {
		if candidate.ID == role.ID {
			index = i
			break
		}
	}
	if index < 0 {
		return models.LevelEveryone, false
	}

	if len(sorted) == 1 {
		return models.LevelAdmin, true
	}

	percentile := float64(index) / float64(len(sorted))
	switch {
	case percentile <= 0.10:
		return models.LevelLeadAdmin, true
	case percentile <= 0.30:
		return models.LevelAdmin, true
	case percentile <= 0.50:
		return models.LevelLeadMod, true
	case percentile <= 0.70:
		return models.LevelModerator, true
	default:
		return models.LevelMember, true
	}
}

// AnalysisReport renders a plain-text classification report for operators.
func (c *RoleClassifier) AnalysisReport(guild *models.GuildSnapshot) string {
	channels := NewChannelAnalysis(guild, c.config)

	var analyses []*models.RoleAnalysis
	for _, role := range guild.Roles {
		if role.IsEveryone {
			continue
		}
		analyses = append(analyses, c.analyzeRole(role, guild, channels))
	}

	byType := make(map[models.RoleType][]*models.RoleAnalysis)
	for _, analysis := range analyses {
		byType[analysis.Type] = append(byType[analysis.Type], analysis)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Role analysis report for %s\n", guild.Name)
	b.WriteString(strings.Repeat("=", 60) + "\n")

	for _, roleType := range models.AllRoleTypes() {
		group := byType[roleType]
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s roles (%d):\n", strings.ToUpper(string(roleType)), len(group))
		b.WriteString(strings.Repeat("-", 40) + "\n")

		shown := group
		if len(shown) > 10 {
			shown = shown[:10]
		}
		for _, analysis := range shown {
			fmt.Fprintf(&b, "\n%s\n", analysis.RoleName)
			fmt.Fprintf(&b, "  members: %d  managed: %t  overrides: %t  owner_role: %t\n",
				analysis.MemberCount, analysis.IsManaged, analysis.HasChannelOverrides, analysis.IsOwnerRole)
			if analysis.Type == models.RoleAuthority {
				fmt.Fprintf(&b, "  category: %s  score: %d  confidence: %.2f\n",
					analysis.Category, analysis.PermissionScore, analysis.Confidence)
			}
		}
		if len(group) > 10 {
			fmt.Fprintf(&b, "  ... and %d more %s roles\n", len(group)-10, roleType)
		}
	}

	return b.String()
}
