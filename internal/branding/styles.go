package branding

import (
	"fmt"
	"os"
	"strings"
)

// DefaultCSS is the Wintent override block injected into every page.
const DefaultCSS = `
      /* Wintent custom styles */
      .ant-layout-sider-children {
        margin-inline-end: 0 !important;
      }

      /* Header bottom border, with higher specificity */
      .ant-layout.ant-layout-has-sider > .ant-layout > .ant-layout-header.ant-pro-layout-header,
      .ant-layout-header.ant-pro-layout-header {
        border-block-end: 1px solid rgba(5, 5, 5, 0.06) !important;
        border-bottom: 1px solid rgba(5, 5, 5, 0.06) !important;
      }

      /* Keep the gap between menu icon and title in compact mode */
      .ant-menu-title-content .ant-pro-base-menu-inline-item-title,
      .ant-menu-title-content .ant-pro-base-menu-horizontal-item-title {
        gap: 8px !important;
      }

      /* Collapsed menu items in compact mode need their full height */
      .ant-pro-base-menu-vertical-collapsed .ant-pro-base-menu-vertical-menu-item {
        height: auto !important;
      }
    `

// Defaults for Options.
const (
	DefaultStyleID      = "wintent-custom-styles"
	DefaultMarkerAttr   = "data-wintent-custom"
	DefaultFaviconTitle = "wintent-favicon"
)

// LoadCSS reads an override block from path. An empty path returns DefaultCSS.
func LoadCSS(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultCSS, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("branding: read css %s: %w", path, err)
	}
	return string(data), nil
}
