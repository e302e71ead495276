package mapper

import (
	"fmt"

	"github.com/socialpulse/internal/models"
	"github.com/socialpulse/internal/provider"
)

// Mapped is the internal shape of one provider item: the post itself plus
// any child rows the platform exposes.
type Mapped struct {
	Post     *models.Post
	Comments []*models.Comment
	Hashtags []*models.Hashtag
	Mentions []*models.Mention
}

// Mapper converts provider-native items of one platform into internal records
type Mapper interface {
	// Platform returns the platform name this mapper handles
	Platform() string

	// Map converts a single raw item. A nil Mapped with nil error means the
	// item carried nothing usable and should be skipped.
	Map(item provider.RawItem) (*Mapped, error)
}

// Registry holds the mappers for all supported platforms
type Registry struct {
	mappers map[string]Mapper
}

// NewRegistry creates an empty mapper registry
func NewRegistry() *Registry {
	return &Registry{
		mappers: make(map[string]Mapper),
	}
}

// Register adds a mapper to the registry
func (r *Registry) Register(m Mapper) {
	r.mappers[m.Platform()] = m
}

// Get returns the mapper for a platform
func (r *Registry) Get(platform string) (Mapper, error) {
	m, ok := r.mappers[platform]
	if !ok {
		return nil, fmt.Errorf("no mapper registered for platform %q", platform)
	}
	return m, nil
}

// NewDefaultRegistry creates a registry with all built-in mappers
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewInstagram())
	r.Register(NewTikTok())
	r.Register(NewRSS())
	return r
}
