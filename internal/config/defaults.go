package config

const (
	defaultStagingDir   = "~/.local/share/ytd/staging"
	defaultMergedDir    = "~/.local/share/ytd/merged"
	defaultProcessedDir = "~/.local/share/ytd/processed"
	defaultStateDir     = "~/.local/share/ytd/state"
	defaultLogDir       = "~/.local/share/ytd/logs"

	defaultExtractorBinary        = "yt-dlp"
	defaultVideoFormat            = "bv*[ext=mp4]/bv*"
	defaultAudioFormat            = "ba[ext=webm]/ba"
	defaultExtractorTimeoutMins   = 30
	defaultMetadataTimeoutSeconds = 120

	defaultFFmpegBinary      = "ffmpeg"
	defaultFFprobeBinary     = "ffprobe"
	defaultEncoderTimeoutMin = 20

	defaultStorageTimeoutMin = 30

	defaultMaxAttempts          = 3
	defaultRetryBackoffSeconds  = 5
	defaultItemDelaySeconds     = 2
	defaultStageDelaySeconds    = 5
	defaultPlaylistDelaySeconds = 10

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

func defaultVideoExtensions() []string {
	return []string{".mp4", ".webm", ".mkv", ".m4v", ".mov"}
}

func defaultAudioExtensions() []string {
	return []string{".m4a", ".webm", ".opus", ".mp3", ".aac", ".ogg"}
}

func defaultVideoSuffixes() []string {
	return []string{"_video", "-video", ".video"}
}

func defaultAudioSuffixes() []string {
	return []string{"_audio", "-audio", ".audio"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir:   defaultStagingDir,
			MergedDir:    defaultMergedDir,
			ProcessedDir: defaultProcessedDir,
			StateDir:     defaultStateDir,
			LogDir:       defaultLogDir,
		},
		Extractor: Extractor{
			Binary:                 defaultExtractorBinary,
			VideoFormat:            defaultVideoFormat,
			AudioFormat:            defaultAudioFormat,
			TimeoutMinutes:         defaultExtractorTimeoutMins,
			MetadataTimeoutSeconds: defaultMetadataTimeoutSeconds,
		},
		Encoder: Encoder{
			FFmpegBinary:   defaultFFmpegBinary,
			FFprobeBinary:  defaultFFprobeBinary,
			StreamCopy:     true,
			TimeoutMinutes: defaultEncoderTimeoutMin,
		},
		Storage: Storage{
			TimeoutMinutes: defaultStorageTimeoutMin,
		},
		Pipeline: Pipeline{
			MaxAttempts:          defaultMaxAttempts,
			RetryBackoffSeconds:  defaultRetryBackoffSeconds,
			ItemDelaySeconds:     defaultItemDelaySeconds,
			StageDelaySeconds:    defaultStageDelaySeconds,
			PlaylistDelaySeconds: defaultPlaylistDelaySeconds,
			SourceCleanup:        SourceCleanupMove,
		},
		Matching: Matching{
			VideoExtensions: defaultVideoExtensions(),
			AudioExtensions: defaultAudioExtensions(),
			VideoSuffixes:   defaultVideoSuffixes(),
			AudioSuffixes:   defaultAudioSuffixes(),
			Fuzzy:           true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
