package sitesettings

import (
	"context"
	"errors"
	"fmt"

	"github.com/gmbtravels/gmbservice/internal/docstore"

	log "github.com/sirupsen/logrus"
)

const (
	Collection = "site_settings"
	// SettingsID is the id of the one and only settings document.
	SettingsID = "site"
)

type Settings struct {
	docstore.Meta `bson:",inline"`
	SiteName      string            `json:"siteName" bson:"siteName"`
	Tagline       string            `json:"tagline" bson:"tagline"`
	ContactEmail  string            `json:"contactEmail" bson:"contactEmail"`
	ContactPhone  string            `json:"contactPhone" bson:"contactPhone"`
	Address       string            `json:"address" bson:"address"`
	Whatsapp      string            `json:"whatsapp" bson:"whatsapp"`
	LogoURL       string            `json:"logoUrl" bson:"logoUrl"`
	SocialLinks   map[string]string `json:"socialLinks" bson:"socialLinks"`
}

type UpdatePayload struct {
	SiteName     *string           `json:"siteName" validate:"omitnil,notblank,max=200"`
	Tagline      *string           `json:"tagline" validate:"omitnil,max=300"`
	ContactEmail *string           `json:"contactEmail" validate:"omitnil,email"`
	ContactPhone *string           `json:"contactPhone" validate:"omitnil,max=50"`
	Address      *string           `json:"address" validate:"omitnil,max=500"`
	Whatsapp     *string           `json:"whatsapp" validate:"omitnil,max=50"`
	LogoURL      *string           `json:"logoUrl"`
	SocialLinks  map[string]string `json:"socialLinks" validate:"omitempty,dive,keys,required,endkeys,url"`
}

func Defaults() Settings {
	return Settings{
		SiteName:    "G.M.B Travels Kashmir",
		Tagline:     "Explore the paradise on earth",
		SocialLinks: map[string]string{},
	}
}

type settingsStore interface {
	Get(ctx context.Context, id string) (Settings, error)
	Insert(ctx context.Context, doc Settings) (Settings, error)
	Update(ctx context.Context, id string, fields map[string]any) (Settings, error)
}

// Seed inserts the settings document when it does not exist yet. Existing settings are left alone.
func Seed(ctx context.Context, store settingsStore, defaults Settings) (Settings, error) {
	current, err := store.Get(ctx, SettingsID)
	if err == nil {
		return current, nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return Settings{}, fmt.Errorf("get site settings: %w", err)
	}

	defaults.ID = SettingsID
	if defaults.SocialLinks == nil {
		defaults.SocialLinks = map[string]string{}
	}

	created, err := store.Insert(ctx, defaults)
	if errors.Is(err, docstore.ErrDuplicateID) {
		// another instance seeded in between
		return store.Get(ctx, SettingsID)
	}
	if err != nil {
		return Settings{}, fmt.Errorf("seed site settings: %w", err)
	}

	log.Infof("site settings seeded with site name [%s]", created.SiteName)
	return created, nil
}
