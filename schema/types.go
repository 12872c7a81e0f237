package schema

import (
	"fmt"
	"strconv"

	json "github.com/goccy/go-json"
)

// TabID identifies a browser tab.
type TabID int

// String returns the decimal form of the tab id.
func (id TabID) String() string {
	return strconv.Itoa(int(id))
}

// Color is an RGBA badge color with 8-bit channels.
type Color [4]uint8

// MarshalJSON encodes the color as a four element number array.
func (c Color) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("[%d,%d,%d,%d]", c[0], c[1], c[2], c[3])), nil
}

// UnmarshalJSON decodes a four element number array.
func (c *Color) UnmarshalJSON(data []byte) error {
	var channels []int
	if err := json.Unmarshal(data, &channels); err != nil {
		return err
	}
	if len(channels) != 4 {
		return fmt.Errorf("color: expected 4 channels, got %d", len(channels))
	}
	for i, v := range channels {
		if v < 0 || v > 255 {
			return fmt.Errorf("color: channel %d out of range: %d", i, v)
		}
		c[i] = uint8(v)
	}
	return nil
}

// Property names a controllable indicator property.
type Property string

const (
	// PropertyColor is the badge background color.
	PropertyColor Property = "color"
	// PropertyIcon is the toolbar icon path.
	PropertyIcon Property = "path"
	// PropertyText is the badge overlay text.
	PropertyText Property = "text"
	// PropertyTitle is the tooltip.
	PropertyTitle Property = "title"
)

// Method names the indicator setter for a property.
type Method string

const (
	// MethodSetBadgeBackgroundColor sets the badge color.
	MethodSetBadgeBackgroundColor Method = "setBadgeBackgroundColor"
	// MethodSetIcon sets the icon path.
	MethodSetIcon Method = "setIcon"
	// MethodSetBadgeText sets the badge text.
	MethodSetBadgeText Method = "setBadgeText"
	// MethodSetTitle sets the tooltip.
	MethodSetTitle Method = "setTitle"
)

// Properties lists every controllable property in apply order.
var Properties = []Property{PropertyColor, PropertyIcon, PropertyText, PropertyTitle}

// Method returns the indicator setter bound to the property.
func (p Property) Method() Method {
	switch p {
	case PropertyColor:
		return MethodSetBadgeBackgroundColor
	case PropertyIcon:
		return MethodSetIcon
	case PropertyText:
		return MethodSetBadgeText
	case PropertyTitle:
		return MethodSetTitle
	default:
		return ""
	}
}
