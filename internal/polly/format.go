package polly

import "strings"

// DefaultOutputFormat is used when a caller does not pick one.
const DefaultOutputFormat = "mp3"

// OutputFormat maps a Polly output format onto HTTP response framing.
type OutputFormat struct {
	Name        string
	ContentType string
	Extension   string
}

var outputFormats = map[string]OutputFormat{
	"mp3":        {Name: "mp3", ContentType: "audio/mpeg", Extension: "mp3"},
	"ogg_vorbis": {Name: "ogg_vorbis", ContentType: "audio/ogg", Extension: "ogg"},
	"ogg_opus":   {Name: "ogg_opus", ContentType: "audio/ogg", Extension: "ogg"},
	"pcm":        {Name: "pcm", ContentType: "audio/pcm", Extension: "pcm"},
	"json":       {Name: "json", ContentType: "application/x-json-stream", Extension: "json"},
}

// LookupOutputFormat returns the framing for a known format name.
func LookupOutputFormat(name string) (OutputFormat, bool) {
	f, ok := outputFormats[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}
