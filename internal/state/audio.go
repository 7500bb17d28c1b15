package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/user/scriptdesk/internal/types"
)

// AudioMeta describes one archived audio file.
type AudioMeta struct {
	ID        types.ArtifactID `json:"id"`
	ChannelID types.ChannelID  `json:"channel_id"`
	RunID     types.RunID      `json:"run_id,omitempty"`
	Voice     string           `json:"voice,omitempty"`
	MimeType  string           `json:"mime_type"`
	Chunks    int              `json:"chunks"`
	Bytes     int              `json:"bytes"`
	FileName  string           `json:"file_name"`
	CreatedAt time.Time        `json:"created_at"`
}

// AudioArchive writes synthesized audio to audio/<yyyy-mm-dd>/<id>.<ext>
// with a <id>.json metadata sidecar.
type AudioArchive struct {
	root string
	now  func() time.Time
}

// NewAudioArchive creates an archive rooted at the given data directory.
func NewAudioArchive(root string) *AudioArchive {
	return &AudioArchive{root: root, now: time.Now}
}

func (a *AudioArchive) dayDir(t time.Time) string {
	return filepath.Join(a.root, "audio", t.Format("2006-01-02"))
}

// Put stores audio and returns its metadata; meta.ID, FileName, Bytes and
// CreatedAt are filled in.
func (a *AudioArchive) Put(_ context.Context, meta AudioMeta, audio []byte) (*AudioMeta, error) {
	meta.ID = types.NewArtifactID()
	meta.CreatedAt = a.now()
	meta.Bytes = len(audio)
	if meta.MimeType == "" {
		meta.MimeType = "audio/mpeg"
	}
	meta.FileName = string(meta.ID) + extensionFor(meta.MimeType)

	dir := a.dayDir(meta.CreatedAt)
	if err := writeFileAtomic(filepath.Join(dir, meta.FileName), audio); err != nil {
		return nil, fmt.Errorf("write audio: %w", err)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal audio meta: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, string(meta.ID)+".json"), data); err != nil {
		return nil, fmt.Errorf("write audio meta: %w", err)
	}
	return &meta, nil
}

// Path returns the location of an archived audio file.
func (a *AudioArchive) Path(meta *AudioMeta) string {
	return filepath.Join(a.dayDir(meta.CreatedAt), meta.FileName)
}

// Get returns the metadata and audio for the given ID.
func (a *AudioArchive) Get(_ context.Context, id types.ArtifactID) (*AudioMeta, []byte, error) {
	matches, err := filepath.Glob(filepath.Join(a.root, "audio", "*", string(id)+".json"))
	if err != nil {
		return nil, nil, fmt.Errorf("glob audio: %w", err)
	}
	if len(matches) == 0 {
		return nil, nil, fmt.Errorf("audio not found: %s", id)
	}
	meta, err := readAudioMeta(matches[0])
	if err != nil {
		return nil, nil, err
	}
	audio, err := os.ReadFile(filepath.Join(filepath.Dir(matches[0]), meta.FileName))
	if err != nil {
		return nil, nil, fmt.Errorf("read audio: %w", err)
	}
	return meta, audio, nil
}

// List returns metadata for all archived audio, newest first.
func (a *AudioArchive) List(_ context.Context) ([]*AudioMeta, error) {
	matches, err := filepath.Glob(filepath.Join(a.root, "audio", "*", "*.json"))
	if err != nil {
		return nil, fmt.Errorf("glob audio: %w", err)
	}
	out := make([]*AudioMeta, 0, len(matches))
	for _, path := range matches {
		meta, err := readAudioMeta(path)
		if err != nil {
			return nil, err
		}
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func readAudioMeta(path string) (*AudioMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read audio meta: %w", err)
	}
	var meta AudioMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal audio meta: %w", err)
	}
	return &meta, nil
}

func extensionFor(mime string) string {
	switch mime {
	case "audio/ogg", "audio/ogg; codecs=opus":
		return ".ogg"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/mp4", "audio/aac":
		return ".m4a"
	default:
		return ".mp3"
	}
}
