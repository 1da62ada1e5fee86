package config

const (
	defaultConfigPath     = "~/.config/cratedigger/config.toml"
	defaultDatabasePath   = "~/.local/share/cratedigger/cratedigger.db"
	defaultBind           = "127.0.0.1:8080"
	defaultYouTubeBaseURL = "https://www.googleapis.com/youtube/v3"
	defaultDecoder        = DecoderFFmpeg
)

// Decoder names.
const (
	DecoderFFmpeg = "ffmpeg"
	DecoderMP3    = "mp3"
)

// Default returns a Config populated with built-in defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			Database: defaultDatabasePath,
			MusicDir: "~/Music",
		},
		Server: Server{
			Bind: defaultBind,
		},
		YouTube: YouTube{
			BaseURL:        defaultYouTubeBaseURL,
			MaxResults:     10,
			DurationBucket: "medium",
			MinScore:       0.3,
		},
		Media: Media{
			YtDlpPath:            "yt-dlp",
			FFmpegPath:           "ffmpeg",
			Decoder:              defaultDecoder,
			FetchTimeoutSeconds:  120,
			DecodeTimeoutSeconds: 60,
		},
		Analysis: Analysis{
			WindowOffset:  0.2,
			WindowSeconds: 30,
			TrackDelayMS:  1000,
		},
		Queue: Queue{
			Size: 64,
		},
		Retry: Retry{
			Attempts:           3,
			BaseDelayMS:        1000,
			MaxDelayMS:         10000,
			PersistAttempts:    3,
			PersistBaseDelayMS: 500,
			PersistMaxDelayMS:  5000,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}
