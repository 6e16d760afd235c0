package models

const (
	ThemeLight = "light"
	ThemeDark  = "dark"
	ThemeSepia = "sepia"

	FontSmall  = "small"
	FontMedium = "medium"
	FontLarge  = "large"
	FontXLarge = "xlarge"
)

var ValidThemes = []string{ThemeLight, ThemeDark, ThemeSepia}
var ValidFontSizes = []string{FontSmall, FontMedium, FontLarge, FontXLarge}

type NotificationPreferences struct {
	Email        bool `bson:"email" json:"email"`
	Reminders    bool `bson:"reminders" json:"reminders"`
	NewBooks     bool `bson:"newBooks" json:"newBooks"`
	Achievements bool `bson:"achievements" json:"achievements"`
}

type PrivacyPreferences struct {
	ShareProgress bool `bson:"shareProgress" json:"shareProgress"`
	PublicProfile bool `bson:"publicProfile" json:"publicProfile"`
}

type UserPreferences struct {
	Theme         string                  `bson:"theme" json:"theme"`
	FontSize      string                  `bson:"fontSize" json:"fontSize"`
	FontFamily    string                  `bson:"fontFamily" json:"fontFamily"`
	ReadingSpeed  int                     `bson:"readingSpeed" json:"readingSpeed"` // words per minute
	Notifications NotificationPreferences `bson:"notifications" json:"notifications"`
	Privacy       PrivacyPreferences      `bson:"privacy" json:"privacy"`
}
