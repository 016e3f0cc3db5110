package verify

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/creatorindex/profile-cli/internal/model"
	"github.com/creatorindex/profile-cli/pkg/youtube"
)

var channelIDPattern = regexp.MustCompile(`/channel/(UC[\w-]{20,})`)

const recentUploadCount = 5

// recentUploads fetches the latest uploads for a verified channel. A lookup
// failure degrades to an empty list; uploads enrich the content block but
// never gate verification.
func (v *Verifier) recentUploads(ctx context.Context, channelID string) []model.VideoSummary {
	if v.youtube == nil || channelID == "" {
		return nil
	}
	cctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	videos, err := v.youtube.GetRecentVideos(cctx, channelID, recentUploadCount)
	if err != nil {
		zap.L().Debug("recent uploads lookup failed",
			zap.String("channel_id", channelID), zap.Error(err))
		return nil
	}
	out := make([]model.VideoSummary, 0, len(videos))
	for _, vid := range videos {
		out = append(out, model.VideoSummary{
			VideoID:     vid.VideoID,
			Title:       vid.Title,
			PublishedAt: vid.PublishedAt,
		})
	}
	return out
}

// verifyYouTube resolves the subject's channel in precedence order: the
// structured channel stats discovery already confirmed, then the claimed URL,
// then a name-based search.
func (v *Verifier) verifyYouTube(ctx context.Context, p *model.CandidateProfile) *model.VerifiedLink {
	if p.Channel != nil && p.Channel.ChannelID != "" {
		return &model.VerifiedLink{
			Kind:            model.LinkYouTube,
			URL:             channelURL(p.Channel.ChannelID),
			ChannelID:       p.Channel.ChannelID,
			SubscriberCount: p.Channel.SubscriberCount,
		}
	}
	if v.youtube == nil {
		return nil
	}

	cctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	if claimed := p.Links.YouTube; claimed != "" {
		if id := extractChannelID(claimed); id != "" {
			ch, err := v.youtube.GetChannelByID(cctx, id)
			if err == nil {
				p.Channel = channelStats(ch)
				return verifiedChannelLink(ch)
			}
			zap.L().Debug("claimed channel did not resolve",
				zap.String("url", claimed), zap.Error(err))
		}
	}

	query := p.DisplayName
	if query == "" {
		query = p.Name
	}
	if query == "" {
		return nil
	}
	ch, err := v.youtube.SearchChannel(cctx, query)
	if err != nil {
		p.AddNote("verify", "channel search found nothing for "+query)
		return nil
	}
	p.Channel = channelStats(ch)
	return verifiedChannelLink(ch)
}

// extractChannelID pulls a channel ID out of a canonical /channel/UC... URL.
// Handle, /user/ and /c/ URLs cannot be resolved without an extra API shape,
// so those fall through to the name search.
func extractChannelID(url string) string {
	if m := channelIDPattern.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	if strings.HasPrefix(url, "UC") && !strings.Contains(url, "/") {
		return url
	}
	return ""
}

func channelURL(id string) string {
	return "https://www.youtube.com/channel/" + id
}

func channelStats(ch *youtube.Channel) *model.ChannelStats {
	return &model.ChannelStats{
		ChannelID:       ch.ChannelID,
		Title:           ch.Title,
		SubscriberCount: ch.SubscriberCount,
		VideoCount:      ch.VideoCount,
		ThumbnailURL:    ch.ThumbnailURL,
		Description:     ch.Description,
	}
}

func verifiedChannelLink(ch *youtube.Channel) *model.VerifiedLink {
	return &model.VerifiedLink{
		Kind:            model.LinkYouTube,
		URL:             channelURL(ch.ChannelID),
		ChannelID:       ch.ChannelID,
		SubscriberCount: ch.SubscriberCount,
	}
}
