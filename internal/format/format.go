// Package format classifies photo files by how safely GPS metadata can be
// written to them. The tiers follow what the in-process EXIF stack can
// actually rewrite: JPEG-family and most TIFF-based RAWs natively, the BMFF
// family only through an external exiftool, and a handful of proprietary
// RAWs where rewriting risks corrupting the file.
package format

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Tier is the write-support level for a file format.
type Tier int

const (
	// FullWrite formats are handled by the native writer.
	FullWrite Tier = iota
	// NeedsExternalTool formats require exiftool (BMFF containers).
	NeedsExternalTool
	// DangerousRaw formats get a best-effort native write plus a warning.
	DangerousRaw
	// Minimal formats carry no usable metadata and are always skipped.
	Minimal
)

func (t Tier) String() string {
	switch t {
	case FullWrite:
		return "full-write"
	case NeedsExternalTool:
		return "external-tool"
	case DangerousRaw:
		return "dangerous-raw"
	case Minimal:
		return "minimal"
	default:
		return "unknown"
	}
}

// Info describes write support for one extension.
type Info struct {
	Tier     Tier
	Advisory string
}

// Keyed by lowercase extension without the dot.
var registry = map[string]Info{
	"jpg":  {FullWrite, ""},
	"jpeg": {FullWrite, ""},
	"tiff": {FullWrite, ""},
	"tif":  {FullWrite, ""},
	"dng":  {FullWrite, ""},
	"arw":  {FullWrite, ""}, // Sony
	"cr2":  {FullWrite, ""}, // Canon
	"nef":  {FullWrite, ""}, // Nikon
	"orf":  {FullWrite, ""}, // Olympus
	"pef":  {FullWrite, ""}, // Pentax
	"srw":  {FullWrite, ""}, // Samsung
	"webp": {FullWrite, ""},
	"jp2":  {FullWrite, ""},
	"exv":  {FullWrite, ""},
	"psd":  {FullWrite, ""},
	"pgf":  {FullWrite, ""},
	"png":  {FullWrite, ""},

	"heic": {NeedsExternalTool, "Will use external exiftool"},
	"heif": {NeedsExternalTool, "Will use external exiftool"},
	"avif": {NeedsExternalTool, "Will use external exiftool"},
	"cr3":  {NeedsExternalTool, "Will use external exiftool"},
	"jxl":  {NeedsExternalTool, "Will use external exiftool"},

	"raf": {DangerousRaw, "Fujifilm RAW - modification may corrupt file"},
	"rw2": {DangerousRaw, "Panasonic RAW - modification may corrupt file"},
	"sr2": {DangerousRaw, "Sony old RAW - modification may corrupt file"},
	"mrw": {DangerousRaw, "Minolta RAW - modification may corrupt file"},
	"crw": {DangerousRaw, "Canon old RAW - modification may corrupt file"},
	"raw": {DangerousRaw, "Generic RAW - modification may corrupt file"},

	"bmp": {Minimal, "No metadata support"},
	"gif": {Minimal, "No metadata support"},
	"tga": {Minimal, "No metadata support"},
}

// Ext returns the lowercase final suffix of path without the dot.
func Ext(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Lookup returns the write-support info for a file. Unknown extensions
// degrade to DangerousRaw with an advisory, so the native writer may still
// attempt them but the user is warned.
func Lookup(path string) Info {
	ext := Ext(path)
	if info, ok := registry[ext]; ok {
		return info
	}
	return Info{
		Tier:     DangerousRaw,
		Advisory: fmt.Sprintf("Unknown format %q - modification may corrupt file", ext),
	}
}

// Known reports whether the extension appears in the registry. Used when
// walking directories so that arbitrary non-photo files are not pulled into
// the batch; explicitly listed files bypass this check.
func Known(path string) bool {
	_, ok := registry[Ext(path)]
	return ok
}

// CanSafelyWrite reports whether the native writer fully supports the file.
func CanSafelyWrite(path string) bool {
	return Lookup(path).Tier == FullWrite
}

// ExtensionsByTier returns the sorted extensions registered at the given
// tier.
func ExtensionsByTier(tier Tier) []string {
	var exts []string
	for ext, info := range registry {
		if info.Tier == tier {
			exts = append(exts, ext)
		}
	}
	sort.Strings(exts)
	return exts
}
