// Package codec serializes and deserializes the ordered observation lists
// attached to an entity, and defines structural equality over the content
// blocks those lists contain.
package codec

// Kind discriminates the variants of a content block.
type Kind string

const (
	KindText         Kind = "text"
	KindImage        Kind = "image"
	KindAudio        Kind = "audio"
	KindResourceLink Kind = "resource_link"
	KindResource     Kind = "resource"
)

// Block is a single content observation. Only the fields relevant to its
// Kind are populated; the rest are left zero. Equal compares the defining
// fields of each variant, not the whole struct, so a Text block with a
// stray Title is still just its Text for dedup purposes.
type Block struct {
	Kind Kind `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// image / audio / resource: base64-encoded payload plus MIME type
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`

	// resource_link / resource
	URI         string `json:"uri,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// Equal reports whether two blocks are structurally equal: same variant
// and same defining fields. Title/Description on resource variants are
// NOT defining fields — two resources with the same data+mime but
// different captions are the same observation (spec §3).
func (b Block) Equal(other Block) bool {
	if b.Kind != other.Kind {
		return false
	}
	switch b.Kind {
	case KindText:
		return b.Text == other.Text
	case KindImage, KindAudio:
		return b.Data == other.Data && b.MimeType == other.MimeType
	case KindResourceLink:
		return b.URI == other.URI
	case KindResource:
		return b.Data == other.Data && b.MimeType == other.MimeType
	default:
		return b == other
	}
}

// DedupAppend appends incoming to base, skipping any block that is
// structurally Equal to one already present (in base or earlier in
// incoming). Order of the surviving elements is preserved.
func DedupAppend(base []Block, incoming []Block) []Block {
	out := make([]Block, len(base), len(base)+len(incoming))
	copy(out, base)
	for _, blk := range incoming {
		if containsEqual(out, blk) {
			continue
		}
		out = append(out, blk)
	}
	return out
}

// RemoveEqual returns base with every block structurally Equal to any
// member of toRemove filtered out, preserving order of what remains.
func RemoveEqual(base []Block, toRemove []Block) []Block {
	if len(toRemove) == 0 {
		return base
	}
	out := make([]Block, 0, len(base))
	for _, blk := range base {
		if containsEqual(toRemove, blk) {
			continue
		}
		out = append(out, blk)
	}
	return out
}

func containsEqual(list []Block, target Block) bool {
	for _, b := range list {
		if b.Equal(target) {
			return true
		}
	}
	return false
}

// Dedup removes internal duplicates from blocks, keeping the first
// occurrence of each structurally-equal group. Used to repair lists that
// may have been built outside DedupAppend (e.g. a whole-list replace on
// create_entities upsert).
func Dedup(blocks []Block) []Block {
	out := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		if containsEqual(out, b) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// SearchableText concatenates the parts of a block that should be
// indexable as free text: block text and resource titles/descriptions.
// Image/audio/resource binary payloads are never indexed.
func (b Block) SearchableText() string {
	switch b.Kind {
	case KindText:
		return b.Text
	case KindResourceLink, KindResource:
		if b.Description != "" {
			return b.Title + " " + b.Description
		}
		return b.Title
	default:
		return ""
	}
}
