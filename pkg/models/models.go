package models

import (
	"time"
)

// Collection names used in the document store.
const (
	CollectionEvents     = "events"
	CollectionGallery    = "gallery"
	CollectionTimeline   = "timeline"
	CollectionUsers      = "users"
	CollectionLikes      = "likes"
	CollectionViews      = "views"
	CollectionStatistics = "statistics"
)

// Collections lists every collection owned by the archive, in the order the
// sync and migrate commands walk them.
var Collections = []string{
	CollectionUsers,
	CollectionEvents,
	CollectionGallery,
	CollectionTimeline,
	CollectionLikes,
	CollectionViews,
	CollectionStatistics,
}

// StatisticsID is the document id of the statistics singleton.
const StatisticsID = "global"

// EventType is the artistic category of an event or timeline entry.
// Values are stored as the Portuguese labels shown on the site.
type EventType string

const (
	EventTypeDance      EventType = "Dança"
	EventTypeMusic      EventType = "Música"
	EventTypeTheater    EventType = "Teatro"
	EventTypeArt        EventType = "Arte"
	EventTypeLiterature EventType = "Literatura"
	EventTypeOther      EventType = "Outro"
)

// EventTypes lists the known event types in display order.
var EventTypes = []EventType{
	EventTypeDance,
	EventTypeMusic,
	EventTypeTheater,
	EventTypeArt,
	EventTypeLiterature,
	EventTypeOther,
}

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// MediaType is the kind of media a gallery item holds.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// Valid reports whether m is image or video.
func (m MediaType) Valid() bool {
	return m == MediaImage || m == MediaVideo
}

// Role is the access level of a user.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleEditor || r == RoleViewer
}

// CanEdit reports whether the role may create and change archive content.
func (r Role) CanEdit() bool {
	return r == RoleAdmin || r == RoleEditor
}

// ItemType names the kind of item a like or view points at.
type ItemType string

const (
	ItemEvent    ItemType = "event"
	ItemGallery  ItemType = "gallery"
	ItemTimeline ItemType = "timeline"
)

// Valid reports whether t is event, gallery or timeline.
func (t ItemType) Valid() bool {
	return t.Collection() != ""
}

// Collection returns the collection holding items of this type,
// or an empty string for an unknown type.
func (t ItemType) Collection() string {
	switch t {
	case ItemEvent:
		return CollectionEvents
	case ItemGallery:
		return CollectionGallery
	case ItemTimeline:
		return CollectionTimeline
	default:
		return ""
	}
}

// Event is a cultural event listed on the site.
type Event struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Type          EventType `json:"type"`
	Category      string    `json:"category"`
	Date          time.Time `json:"date"`
	Location      string    `json:"location"`
	Participants  *int      `json:"participants,omitempty"`
	Images        []string  `json:"images"`
	Videos        []string  `json:"videos,omitempty"`
	Views         int64     `json:"views"`
	Likes         int64     `json:"likes"`
	IsHighlighted bool      `json:"isHighlighted"`
	IsFeatured    bool      `json:"isFeatured"`
	Gradient      string    `json:"gradient,omitempty"`
	CreatedBy     string    `json:"createdBy"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// EventPatch carries the fields of an event update. Nil fields are left untouched.
type EventPatch struct {
	Title         *string    `json:"title,omitempty"`
	Description   *string    `json:"description,omitempty"`
	Type          *EventType `json:"type,omitempty"`
	Category      *string    `json:"category,omitempty"`
	Date          *time.Time `json:"date,omitempty"`
	Location      *string    `json:"location,omitempty"`
	Participants  *int       `json:"participants,omitempty"`
	Images        *[]string  `json:"images,omitempty"`
	Videos        *[]string  `json:"videos,omitempty"`
	IsHighlighted *bool      `json:"isHighlighted,omitempty"`
	IsFeatured    *bool      `json:"isFeatured,omitempty"`
	Gradient      *string    `json:"gradient,omitempty"`
}

// GalleryItem is a photo or video in the media gallery.
//
// AssetID, Format, Bytes, Width, Height and Duration come from the media
// upload result. AssetID is what allows the asset to be deleted or replaced
// at the provider later.
type GalleryItem struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Type          MediaType `json:"type"`
	URL           string    `json:"url"`
	ThumbnailURL  string    `json:"thumbnailUrl,omitempty"`
	EventID       string    `json:"eventId,omitempty"`
	Tags          []string  `json:"tags"`
	Year          int       `json:"year"`
	AssetID       string    `json:"assetId,omitempty"`
	Format        string    `json:"format,omitempty"`
	Bytes         int64     `json:"bytes,omitempty"`
	Width         int       `json:"width,omitempty"`
	Height        int       `json:"height,omitempty"`
	Duration      float64   `json:"duration,omitempty"`
	Views         int64     `json:"views"`
	Likes         int64     `json:"likes"`
	IsHighlighted bool      `json:"isHighlighted"`
	UploadedBy    string    `json:"uploadedBy"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// GalleryPatch carries the fields of a gallery item update.
type GalleryPatch struct {
	Title         *string    `json:"title,omitempty"`
	Description   *string    `json:"description,omitempty"`
	Type          *MediaType `json:"type,omitempty"`
	URL           *string    `json:"url,omitempty"`
	ThumbnailURL  *string    `json:"thumbnailUrl,omitempty"`
	EventID       *string    `json:"eventId,omitempty"`
	Tags          *[]string  `json:"tags,omitempty"`
	Year          *int       `json:"year,omitempty"`
	AssetID       *string    `json:"assetId,omitempty"`
	Format        *string    `json:"format,omitempty"`
	IsHighlighted *bool      `json:"isHighlighted,omitempty"`
}

// TimelineEvent is an entry on the historical timeline.
// Year is derived from Date and is never set on its own.
type TimelineEvent struct {
	ID            string    `json:"id"`
	Year          int       `json:"year"`
	Date          string    `json:"date"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Type          EventType `json:"type"`
	Location      string    `json:"location"`
	Participants  *int      `json:"participants,omitempty"`
	Images        []string  `json:"images"`
	Videos        []string  `json:"videos,omitempty"`
	Views         int64     `json:"views"`
	Likes         int64     `json:"likes"`
	IsHighlighted bool      `json:"isHighlighted"`
	EventID       string    `json:"eventId,omitempty"`
	CreatedBy     string    `json:"createdBy"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// TimelinePatch carries the fields of a timeline update. Changing Date also
// moves the entry to the year of the new date.
type TimelinePatch struct {
	Date          *string    `json:"date,omitempty"`
	Title         *string    `json:"title,omitempty"`
	Description   *string    `json:"description,omitempty"`
	Type          *EventType `json:"type,omitempty"`
	Location      *string    `json:"location,omitempty"`
	Participants  *int       `json:"participants,omitempty"`
	Images        *[]string  `json:"images,omitempty"`
	Videos        *[]string  `json:"videos,omitempty"`
	IsHighlighted *bool      `json:"isHighlighted,omitempty"`
	EventID       *string    `json:"eventId,omitempty"`
}

// User mirrors an identity-provider account. The document id is the
// provider's user id.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName,omitempty"`
	PhotoURL    string    `json:"photoURL,omitempty"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// UserPatch carries profile fields a user update may change.
type UserPatch struct {
	DisplayName *string `json:"displayName,omitempty"`
	PhotoURL    *string `json:"photoURL,omitempty"`
	Role        *Role   `json:"role,omitempty"`
}

// Like records that a user liked an item.
type Like struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ItemID    string    `json:"itemId"`
	ItemType  ItemType  `json:"itemType"`
	CreatedAt time.Time `json:"createdAt"`
}

// View records that a browser session opened an item.
type View struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"itemId"`
	ItemType  ItemType  `json:"itemType"`
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Statistics is the aggregate snapshot shown on the admin dashboard.
type Statistics struct {
	ID                  string            `json:"id"`
	TotalEvents         int               `json:"totalEvents"`
	TotalGalleryItems   int               `json:"totalGalleryItems"`
	TotalTimelineEvents int               `json:"totalTimelineEvents"`
	TotalUsers          int               `json:"totalUsers"`
	TotalViews          int64             `json:"totalViews"`
	TotalLikes          int64             `json:"totalLikes"`
	EventsByType        map[EventType]int `json:"eventsByType"`
	UpdatedAt           time.Time         `json:"updatedAt"`
}
