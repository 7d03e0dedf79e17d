// Package models defines the entities of the cultural archive.
//
// The types here are passive records: they carry no behaviour beyond enum
// validation and date helpers. Every entity is identified by an opaque string
// id assigned by the document store, and its fields are stored under the
// camelCase names given in the json tags.
//
// # Entities
//
//   - [Event]: a cultural event with views/likes counters and featured/highlighted flags
//   - [GalleryItem]: an image or video, optionally linked to an event
//   - [TimelineEvent]: an entry on the historical timeline; its Year is derived from Date
//   - [User]: an identity-provider account mirrored on first sign-in
//   - [Like], [View]: engagement rows keyed by (user or session, item, item type)
//   - [Statistics]: the singleton aggregate snapshot
//
// # Patches
//
// Updates are expressed as patch structs ([EventPatch], [GalleryPatch],
// [TimelinePatch], [UserPatch]) whose nil fields are left untouched. Counters
// and timestamps have no patch fields: counters change only through the
// increment calls and timestamps are stamped by the services.
package models
