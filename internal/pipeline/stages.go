package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/momentumsubash/ytd/internal/config"
	"github.com/momentumsubash/ytd/internal/fileutil"
	"github.com/momentumsubash/ytd/internal/pairing"
	"github.com/momentumsubash/ytd/internal/progress"
	"github.com/momentumsubash/ytd/internal/services"
	"github.com/momentumsubash/ytd/internal/services/ffmpeg"
	"github.com/momentumsubash/ytd/internal/services/objstore"
	"github.com/momentumsubash/ytd/internal/services/ytdlp"
)

// downloadOperation fetches the video and audio streams for one playlist
// entry into the staging directory.
type downloadOperation struct {
	extractor  ytdlp.Extractor
	entries    map[string]ytdlp.Entry
	stagingDir string
}

func (op *downloadOperation) Stage() progress.Stage {
	return progress.StageDownload
}

func (op *downloadOperation) Execute(ctx context.Context, stem string) (progress.Metadata, error) {
	entry, ok := op.entries[stem]
	if !ok {
		return progress.Metadata{}, services.Wrap(services.ErrValidation, "download", "resolve entry",
			fmt.Sprintf("no playlist entry for stem %q", stem), nil)
	}
	if entry.Private {
		return progress.Metadata{}, services.Wrap(services.ErrForbidden, "download", "fetch streams",
			"entry is marked private in the listing", nil)
	}

	videoPath, err := op.extractor.DownloadVideo(ctx, entry.URL, op.stagingDir, stem)
	if err != nil {
		return progress.Metadata{}, err
	}
	audioPath, err := op.extractor.DownloadAudio(ctx, entry.URL, op.stagingDir, stem)
	if err != nil {
		return progress.Metadata{}, err
	}

	var total int64
	for _, path := range []string{videoPath, audioPath} {
		if size, sizeErr := fileutil.FileSize(path); sizeErr == nil {
			total += size
		}
	}
	return progress.Metadata{SizeBytes: total}, nil
}

// mergeOperation muxes a unit's staged video and audio files into one
// container in the merged directory, then applies the configured source
// cleanup.
type mergeOperation struct {
	encoder      ffmpeg.Encoder
	units        map[string]pairing.Unit
	stagingDir   string
	mergedDir    string
	cleanupMode  string
	processedDir string
}

func (op *mergeOperation) Stage() progress.Stage {
	return progress.StageMerge
}

func (op *mergeOperation) Execute(ctx context.Context, stem string) (progress.Metadata, error) {
	unit, ok := op.units[stem]
	if !ok || !unit.IsPair() {
		return progress.Metadata{}, services.Wrap(services.ErrValidation, "merge", "resolve unit",
			fmt.Sprintf("no paired files for stem %q", stem), nil)
	}

	result, err := op.encoder.Merge(ctx, ffmpeg.MergeRequest{
		VideoPath:  filepath.Join(op.stagingDir, unit.Video),
		AudioPath:  filepath.Join(op.stagingDir, unit.Audio),
		OutputPath: filepath.Join(op.mergedDir, unit.OutputName),
	})
	if err != nil {
		return progress.Metadata{}, err
	}

	meta := progress.Metadata{
		SizeBytes:       result.SizeBytes,
		DurationSeconds: result.DurationSeconds,
	}
	if hash, hashErr := fileutil.HashFile(result.OutputPath); hashErr == nil {
		meta.Hash = hash
	}
	return meta, nil
}

// Cleanup disposes of the consumed source files after a successful merge.
func (op *mergeOperation) Cleanup(ctx context.Context, stem string) error {
	unit := op.units[stem]
	switch op.cleanupMode {
	case config.SourceCleanupMove:
		for _, name := range []string{unit.Video, unit.Audio} {
			if name == "" {
				continue
			}
			if _, err := fileutil.MoveFile(filepath.Join(op.stagingDir, name), op.processedDir); err != nil {
				return fmt.Errorf("move %s to processed: %w", name, err)
			}
		}
	case config.SourceCleanupDelete:
		for _, name := range []string{unit.Video, unit.Audio} {
			if name == "" {
				continue
			}
			if err := os.Remove(filepath.Join(op.stagingDir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("remove %s: %w", name, err)
			}
		}
	}
	return nil
}

// uploadOperation ships a unit's merged file to object storage under a
// playlist-scoped key and verifies the stored copy.
type uploadOperation struct {
	store     objstore.Client
	mergedDir string
	playlist  string
	// names maps each stem in the batch to its merged file name.
	names map[string]string
}

func (op *uploadOperation) Stage() progress.Stage {
	return progress.StageUpload
}

func (op *uploadOperation) localPath(stem string) string {
	return filepath.Join(op.mergedDir, op.names[stem])
}

func (op *uploadOperation) objectKey(stem string) string {
	name := op.names[stem]
	if op.playlist == "" {
		return name
	}
	return op.playlist + "/" + name
}

func (op *uploadOperation) Execute(ctx context.Context, stem string) (progress.Metadata, error) {
	local := op.localPath(stem)
	key := op.objectKey(stem)

	result, err := op.store.Put(ctx, objstore.PutRequest{Key: key, FilePath: local})
	if err != nil {
		return progress.Metadata{}, err
	}

	info, err := op.store.Stat(ctx, key)
	if err != nil {
		return progress.Metadata{}, err
	}
	if !info.Exists || info.SizeBytes != result.SizeBytes {
		return progress.Metadata{}, services.Wrap(services.ErrTransient, "upload", "verify object",
			"stored object does not match the uploaded file", nil)
	}

	meta := progress.Metadata{
		SizeBytes:  result.SizeBytes,
		Bucket:     result.Bucket,
		StorageKey: result.Key,
	}
	if hash, hashErr := fileutil.HashFile(local); hashErr == nil {
		meta.Hash = hash
	}
	return meta, nil
}

// Fingerprint captures the merged file's current content so a completed
// upload record is honored only while the file is unchanged. A missing or
// unreadable file yields nil, which leaves the record authoritative.
func (op *uploadOperation) Fingerprint(stem string) *progress.Fingerprint {
	local := op.localPath(stem)
	size, err := fileutil.FileSize(local)
	if err != nil {
		return nil
	}
	hash, err := fileutil.HashFile(local)
	if err != nil {
		return nil
	}
	return &progress.Fingerprint{SizeBytes: size, Hash: hash}
}
