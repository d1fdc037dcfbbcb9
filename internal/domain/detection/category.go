package detection

import (
	"fmt"
	"image/color"
)

// Locale selects the language of user facing labels.
type Locale string

const (
	LocaleRU Locale = "ru"
	LocaleEN Locale = "en"
)

// ParseLocale maps unknown values to LocaleRU.
func ParseLocale(s string) Locale {
	if Locale(s) == LocaleEN {
		return LocaleEN
	}
	return LocaleRU
}

type text struct {
	Name        string
	Description string
}

// Category carries the presentation of one detection type.
type Category struct {
	Key   string
	Color color.RGBA
	texts map[Locale]text
}

// Label is the short localized name, or the raw type for unknown categories.
func (c Category) Label(l Locale) string {
	if t, ok := c.texts[l]; ok && t.Name != "" {
		return t.Name
	}
	return c.Key
}

func (c Category) Description(l Locale) string {
	if t, ok := c.texts[l]; ok && t.Description != "" {
		return t.Description
	}
	return defaultDescriptions[l]
}

// Hex renders the stroke color as #rrggbb.
func (c Category) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.Color.R, c.Color.G, c.Color.B)
}

var (
	colorRed    = color.RGBA{R: 0xef, G: 0x44, B: 0x44, A: 0xff}
	colorOrange = color.RGBA{R: 0xf9, G: 0x73, B: 0x16, A: 0xff}
	colorBlue   = color.RGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 0xff}
	colorYellow = color.RGBA{R: 0xea, G: 0xb3, B: 0x08, A: 0xff}
)

var defaultDescriptions = map[Locale]string{
	LocaleRU: "Обнаружена аномалия",
	LocaleEN: "Anomaly detected",
}

var categories = map[string]Category{
	"broken_part": {
		Key:   "broken_part",
		Color: colorRed,
		texts: map[Locale]text{
			LocaleRU: {"Поврежденная часть", "Обнаружено повреждение детали"},
			LocaleEN: {"Broken part", "Damaged part detected"},
		},
	},
	"scratch": {
		Key:   "scratch",
		Color: colorOrange,
		texts: map[Locale]text{
			LocaleRU: {"Царапина", "Обнаружена царапина"},
			LocaleEN: {"Scratch", "Scratch detected"},
		},
	},
	"cavity": {
		Key:   "cavity",
		Color: colorOrange,
	},
	"filling": {
		Key:   "filling",
		Color: colorBlue,
		texts: map[Locale]text{
			LocaleRU: {"Пломба", "Обнаружена пломба"},
			LocaleEN: {"Filling", "Filling detected"},
		},
	},
}

// Lookup returns the category for a detection type. Unknown types get the
// yellow default with the raw type as label.
func Lookup(kind string) Category {
	if c, ok := categories[kind]; ok {
		return c
	}
	return Category{Key: kind, Color: colorYellow}
}
