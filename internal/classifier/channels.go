package classifier

import (
	"strings"

	"permission_service/internal/models"
	"permission_service/internal/textnorm"
)

// ChannelAnalysis picks which of a guild's channels are worth scanning for
// role overwrites. Large guilds can carry thousands of channels, and a naive
// per-role scan is O(roles x channels); bounding the set keeps one
// classification pass inside interactive latency.
type ChannelAnalysis struct {
	guild    *models.GuildSnapshot
	config   *ClassifierConfig
	analyzed []*models.ChannelSnapshot // memoized ChannelsToAnalyze result
}

// NewChannelAnalysis builds an analysis for one guild snapshot.
func NewChannelAnalysis(guild *models.GuildSnapshot, config *ClassifierConfig) *ChannelAnalysis {
	if config == nil {
		config = DefaultClassifierConfig()
	}
	return &ChannelAnalysis{guild: guild, config: config}
}

// ChannelsToAnalyze returns the bounded, priority-ordered channel set: core
// channels from the leading categories first, then everything that does not
// look like a ticket, archive, bot dump or temporary event channel, capped
// at MaxChannels.
func (a *ChannelAnalysis) ChannelsToAnalyze() []*models.ChannelSnapshot {
	if a.analyzed != nil {
		return a.analyzed
	}

	channels := a.priorityChannels()
	channels = append(channels, a.filteredChannels(channels)...)

	if len(channels) > a.config.MaxChannels {
		channels = channels[:a.config.MaxChannels]
	}
	a.analyzed = channels
	return channels
}

// priorityChannels picks up to 5 core channels from each of the first 3
// categories, plus up to 5 uncategorized core channels.
func (a *ChannelAnalysis) priorityChannels() []*models.ChannelSnapshot {
	var priority []*models.ChannelSnapshot

	categories := a.guild.Categories
	if len(categories) > 3 {
		categories = categories[:3]
	}
	for _, category := range categories {
		inCategory := a.guild.ChannelsIn(category.ID)
		if len(inCategory) > 5 {
			inCategory = inCategory[:5]
		}
		for _, channel := range inCategory {
			if a.isCoreChannel(channel) {
				priority = append(priority, channel)
			}
		}
	}

	seen := 0
	for _, channel := range a.guild.Channels {
		if channel.CategoryID != 0 {
			continue
		}
		seen++
		if seen > 5 {
			break
		}
		if a.isCoreChannel(channel) {
			priority = append(priority, channel)
		}
	}

	return priority
}

func (a *ChannelAnalysis) filteredChannels(already []*models.ChannelSnapshot) []*models.ChannelSnapshot {
	taken := make(map[int64]bool, len(already))
	for _, channel := range already {
		taken[channel.ID] = true
	}

	var filtered []*models.ChannelSnapshot
	for _, channel := range a.guild.Channels {
		if taken[channel.ID] {
			continue
		}
		if a.isTicketChannel(channel) || a.isArchivedChannel(channel) ||
			a.isBotChannel(channel) || a.isTemporaryChannel(channel) {
			continue
		}
		filtered = append(filtered, channel)
		if len(filtered) >= a.config.MaxChannels {
			break
		}
	}
	return filtered
}

// HasChannelOverride reports whether the role appears in the overwrite table
// of any analyzed channel or of the first MaxCategories categories. This is
// a presence heuristic, not an effective-permission computation.
func (a *ChannelAnalysis) HasChannelOverride(roleID int64) bool {
	for _, channel := range a.ChannelsToAnalyze() {
		if channel.OverwriteRoleIDs[roleID] {
			return true
		}
	}

	categories := a.guild.Categories
	if len(categories) > a.config.MaxCategories {
		categories = categories[:a.config.MaxCategories]
	}
	for _, category := range categories {
		if category.OverwriteRoleIDs[roleID] {
			return true
		}
	}
	return false
}

func (a *ChannelAnalysis) isCoreChannel(channel *models.ChannelSnapshot) bool {
	return containsAny(textnorm.Normalize(channel.Name), coreChannelKeywords)
}

func (a *ChannelAnalysis) isTicketChannel(channel *models.ChannelSnapshot) bool {
	name := textnorm.Normalize(channel.Name)
	if containsAny(name, ticketKeywords) {
		return true
	}
	// 3+ digit runs are almost always ticket numbering.
	return ticketNumberPattern.MatchString(name)
}

func (a *ChannelAnalysis) isArchivedChannel(channel *models.ChannelSnapshot) bool {
	if channel.CategoryID != 0 {
		if category := a.guild.Category(channel.CategoryID); category != nil {
			if containsAny(textnorm.Normalize(category.Name), archiveKeywords) {
				return true
			}
		}
	}

	name := textnorm.Normalize(channel.Name)
	if containsAny(name, []string{"archive", "old-", "closed-", "expired", "inactive"}) {
		return true
	}

	// Read-only for the default role plus an archive-flavored name.
	if channel.ReadOnlyForDefault && containsAny(name, []string{"old", "archive", "closed"}) {
		return true
	}
	return false
}

func (a *ChannelAnalysis) isBotChannel(channel *models.ChannelSnapshot) bool {
	return containsAny(textnorm.Normalize(channel.Name), botChannelKeywords)
}

func (a *ChannelAnalysis) isTemporaryChannel(channel *models.ChannelSnapshot) bool {
	return containsAny(textnorm.Normalize(channel.Name), tempChannelKeywords)
}

func containsAny(name string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(name, keyword) {
			return true
		}
	}
	return false
}
