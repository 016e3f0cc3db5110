// Package model defines the record types that flow through the profile
// aggregation pipeline. Each stage is a pure function from one record type to
// the next: CandidateProfile (discovery) -> VerifiedProfile (verification) ->
// EnrichedProfile (enrichment, storage-ready).
package model

import "time"

// LinkKind identifies a category of external link attached to a subject.
type LinkKind string

const (
	LinkWebsite   LinkKind = "website"
	LinkYouTube   LinkKind = "youtube"
	LinkTwitter   LinkKind = "twitter"
	LinkInstagram LinkKind = "instagram"
	LinkFacebook  LinkKind = "facebook"
	LinkTikTok    LinkKind = "tiktok"
	LinkPodcast   LinkKind = "podcast"
	LinkSpotify   LinkKind = "spotify"
)

// AllLinkKinds lists every link category in a stable order.
var AllLinkKinds = []LinkKind{
	LinkWebsite, LinkYouTube, LinkTwitter, LinkInstagram,
	LinkFacebook, LinkTikTok, LinkPodcast, LinkSpotify,
}

// ChannelStats holds verified channel data from the channel provider.
type ChannelStats struct {
	ChannelID       string `json:"channel_id"`
	Title           string `json:"title"`
	SubscriberCount int64  `json:"subscriber_count"`
	VideoCount      int64  `json:"video_count"`
	ThumbnailURL    string `json:"thumbnail_url,omitempty"`
	Description     string `json:"description,omitempty"`
}

// VideoSummary is one recent upload on a verified channel.
type VideoSummary struct {
	VideoID     string    `json:"video_id"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at"`
}

// Book is a publication matched by the book-catalog provider.
type Book struct {
	Title         string   `json:"title"`
	Authors       []string `json:"authors,omitempty"`
	PublishedDate string   `json:"published_date,omitempty"`
	Thumbnail     string   `json:"thumbnail,omitempty"`
	ISBN          string   `json:"isbn,omitempty"`
	AmazonURL     string   `json:"amazon_url,omitempty"`
}

// Article is a news article matched to the subject.
type Article struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url"`
	Source      string    `json:"source,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// LinkHints holds unverified link candidates, typically supplied by the
// free-text research provider. Empty string means no candidate.
type LinkHints struct {
	Website   string `json:"website,omitempty"`
	YouTube   string `json:"youtube,omitempty"`
	Twitter   string `json:"twitter,omitempty"`
	Instagram string `json:"instagram,omitempty"`
	Facebook  string `json:"facebook,omitempty"`
	TikTok    string `json:"tiktok,omitempty"`
	Podcast   string `json:"podcast,omitempty"`
	Spotify   string `json:"spotify,omitempty"`
}

// Get returns the hint for a link kind.
func (h LinkHints) Get(kind LinkKind) string {
	switch kind {
	case LinkWebsite:
		return h.Website
	case LinkYouTube:
		return h.YouTube
	case LinkTwitter:
		return h.Twitter
	case LinkInstagram:
		return h.Instagram
	case LinkFacebook:
		return h.Facebook
	case LinkTikTok:
		return h.TikTok
	case LinkPodcast:
		return h.Podcast
	case LinkSpotify:
		return h.Spotify
	}
	return ""
}

// Set stores a hint for a link kind.
func (h *LinkHints) Set(kind LinkKind, url string) {
	switch kind {
	case LinkWebsite:
		h.Website = url
	case LinkYouTube:
		h.YouTube = url
	case LinkTwitter:
		h.Twitter = url
	case LinkInstagram:
		h.Instagram = url
	case LinkFacebook:
		h.Facebook = url
	case LinkTikTok:
		h.TikTok = url
	case LinkPodcast:
		h.Podcast = url
	case LinkSpotify:
		h.Spotify = url
	}
}

// HistoricalInfo marks a subject as a historical (non-living) figure.
type HistoricalInfo struct {
	Lifespan string `json:"lifespan,omitempty"`
	Note     string `json:"note,omitempty"`
}

// DiscoveryNote records what a discovery attempt did and why it succeeded or
// failed. Notes are an audit trail, never control flow.
type DiscoveryNote struct {
	Provider string    `json:"provider"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

// CandidateProfile is the discovery stage output. Every field is optional
// because no provider is guaranteed to match. Verified-API data (Channel,
// Books) always takes precedence over research-provider claims for the same
// fact in every later stage.
type CandidateProfile struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name,omitempty"`
	Title       string   `json:"title,omitempty"`
	Gender      string   `json:"gender,omitempty"`
	Category    string   `json:"category,omitempty"`
	Region      string   `json:"region,omitempty"`
	Country     string   `json:"country,omitempty"`
	Languages   []string `json:"languages,omitempty"`
	Topics      []string `json:"topics,omitempty"`
	Bio         string   `json:"bio,omitempty"`

	// Verified-API data, straight from structured providers.
	Channel *ChannelStats `json:"channel,omitempty"`
	Books   []Book        `json:"books,omitempty"`

	// Unverified hints and claims from the research provider.
	Links        LinkHints `json:"links"`
	ClaimedBooks []string  `json:"claimed_books,omitempty"`
	Courses      []string  `json:"courses,omitempty"`
	AudioBooks   []string  `json:"audio_books,omitempty"`
	EBooks       []string  `json:"ebooks,omitempty"`

	ImageURL   string `json:"image_url,omitempty"`
	ImageQuery string `json:"image_query,omitempty"`

	Historical *HistoricalInfo `json:"historical,omitempty"`
	Articles   []Article       `json:"articles,omitempty"`

	// NameVariants collects the name as each source reported it, used by the
	// validator's consistency check.
	NameVariants []string `json:"name_variants,omitempty"`

	Sources []string        `json:"sources,omitempty"`
	Notes   []DiscoveryNote `json:"notes,omitempty"`
}

// AddNote appends a discovery note.
func (c *CandidateProfile) AddNote(provider, message string) {
	c.Notes = append(c.Notes, DiscoveryNote{
		Provider: provider,
		Message:  message,
		At:       time.Now().UTC(),
	})
}

// AddSource records a contributing provider once.
func (c *CandidateProfile) AddSource(name string) {
	for _, s := range c.Sources {
		if s == name {
			return
		}
	}
	c.Sources = append(c.Sources, name)
}

// VerifiedLink is a link that passed category-specific verification. A link
// that fails verification is represented as absence, never as an invalid
// entry surviving into later stages.
type VerifiedLink struct {
	Kind LinkKind `json:"kind"`
	URL  string   `json:"url"`

	// Kind-specific metadata.
	ChannelID       string `json:"channel_id,omitempty"`
	SubscriberCount int64  `json:"subscriber_count,omitempty"`
	FeedTitle       string `json:"feed_title,omitempty"`
	EpisodeCount    int    `json:"episode_count,omitempty"`
}

// VerificationResults summarizes the verification stage for downstream
// confidence scoring.
type VerificationResults struct {
	LinksChecked    int  `json:"links_checked"`
	LinksValid      int  `json:"links_valid"`
	LinksInvalid    int  `json:"links_invalid"`
	YouTubeVerified bool `json:"youtube_verified"`
	PodcastVerified bool `json:"podcast_verified"`
	SpotifyVerified bool `json:"spotify_verified"`
}

// VerifiedProfile is the verification stage output.
type VerifiedProfile struct {
	CandidateProfile

	VerifiedLinks map[LinkKind]*VerifiedLink `json:"verified_links"`
	Verification  VerificationResults        `json:"verification"`
	RecentUploads []VideoSummary             `json:"recent_uploads,omitempty"`
}

// Confidence buckets the confidence score for display and refresh cadence.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Tier is the directory display tier derived from confidence.
type Tier string

const (
	TierVerified  Tier = "verified"
	TierRising    Tier = "rising"
	TierCommunity Tier = "community"
)

// YouTubeBlock is the stored channel content block.
type YouTubeBlock struct {
	ChannelID       string         `json:"channel_id"`
	URL             string         `json:"url"`
	Title           string         `json:"title,omitempty"`
	SubscriberCount int64          `json:"subscriber_count"`
	VideoCount      int64          `json:"video_count"`
	RecentUploads   []VideoSummary `json:"recent_uploads,omitempty"`
}

// PodcastBlock is the stored podcast content block.
type PodcastBlock struct {
	FeedURL      string `json:"feed_url"`
	Title        string `json:"title,omitempty"`
	EpisodeCount int    `json:"episode_count"`
}

// PipelineAudit records when each stage produced its output.
type PipelineAudit struct {
	DiscoveredAt time.Time `json:"discovered_at,omitempty"`
	VerifiedAt   time.Time `json:"verified_at,omitempty"`
	EnrichedAt   time.Time `json:"enriched_at,omitempty"`
}

// EnrichedProfile is the terminal, storage-ready shape. SocialLinks only ever
// contains links that passed verification in the same run.
type EnrichedProfile struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Title       string   `json:"title,omitempty"`
	Gender      string   `json:"gender,omitempty"`
	Category    string   `json:"category,omitempty"`
	Region      string   `json:"region,omitempty"`
	Country     string   `json:"country,omitempty"`
	Languages   []string `json:"languages,omitempty"`
	Topics      []string `json:"topics,omitempty"`
	Bio         string   `json:"bio,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`

	SocialLinks map[LinkKind]string `json:"social_links"`

	YouTube    *YouTubeBlock   `json:"youtube,omitempty"`
	Podcast    *PodcastBlock   `json:"podcast,omitempty"`
	Books      []Book          `json:"books,omitempty"`
	Courses    []string        `json:"courses,omitempty"`
	AudioBooks []string        `json:"audio_books,omitempty"`
	EBooks     []string        `json:"ebooks,omitempty"`
	Historical *HistoricalInfo `json:"historical,omitempty"`
	Articles   []Article       `json:"articles,omitempty"`

	Confidence      Confidence `json:"confidence"`
	ConfidenceScore int        `json:"confidence_score"`
	Tier            Tier       `json:"tier"`

	DataSources  []string      `json:"data_sources,omitempty"`
	NameVariants []string      `json:"name_variants,omitempty"`
	Pipeline     PipelineAudit `json:"pipeline"`
}

// BucketConfidence maps a clamped score to its confidence bucket.
func BucketConfidence(score int) Confidence {
	switch {
	case score >= 70:
		return ConfidenceHigh
	case score >= 40:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// TierForConfidence maps a confidence bucket to a display tier.
func TierForConfidence(c Confidence) Tier {
	switch c {
	case ConfidenceHigh:
		return TierVerified
	case ConfidenceMedium:
		return TierRising
	default:
		return TierCommunity
	}
}
