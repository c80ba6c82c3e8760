package domain

import "fmt"

// Preset is one of the fixed encoding profiles. The set is closed.
type Preset int

const (
	Preset480p Preset = iota
	Preset720p
	Preset1080p
	Preset2160p
)

type PresetSettings struct {
	Width        int
	Height       int
	VideoBitrate string
	AudioBitrate string
	CRF          int
}

func (p Preset) Settings() PresetSettings {
	switch p {
	case Preset480p:
		return PresetSettings{Width: 854, Height: 480, VideoBitrate: "1500k", AudioBitrate: "128k", CRF: 28}
	case Preset720p:
		return PresetSettings{Width: 1280, Height: 720, VideoBitrate: "3000k", AudioBitrate: "192k", CRF: 24}
	case Preset2160p:
		return PresetSettings{Width: 3840, Height: 2160, VideoBitrate: "15000k", AudioBitrate: "256k", CRF: 20}
	default:
		return PresetSettings{Width: 1920, Height: 1080, VideoBitrate: "6000k", AudioBitrate: "192k", CRF: 22}
	}
}

func (p Preset) String() string {
	switch p {
	case Preset480p:
		return "480p"
	case Preset720p:
		return "720p"
	case Preset1080p:
		return "1080p"
	case Preset2160p:
		return "2160p"
	default:
		return fmt.Sprintf("Preset(%d)", int(p))
	}
}

func ParsePreset(s string) (Preset, error) {
	switch s {
	case "480p":
		return Preset480p, nil
	case "720p":
		return Preset720p, nil
	case "1080p":
		return Preset1080p, nil
	case "2160p", "4k":
		return Preset2160p, nil
	}
	return 0, fmt.Errorf("unknown quality preset %q", s)
}
