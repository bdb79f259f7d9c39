package meal

import "context"

// NormalizedImage is a bounded JPEG ready for transmission.
type NormalizedImage struct {
	JPEG   []byte
	Base64 string
	Width  int
	Height int
}

// ImageNormalizer turns an uploaded blob into a bounded JPEG payload.
type ImageNormalizer interface {
	Normalize(blob []byte) (NormalizedImage, error)
}

// Analyzer submits a normalized image to the model and returns a validated record.
type Analyzer interface {
	Analyze(ctx context.Context, imageBase64 string) (AnalysisRecord, error)
}

// HistoryStore persists analyses per identity.
type HistoryStore interface {
	Append(ctx context.Context, identity string, record AnalysisRecord) (HistoryEntry, error)
	Load(ctx context.Context) (Store, error)
	Query(ctx context.Context, identity string) ([]HistoryEntry, error)
}

// PhotoArchive keeps a copy of analysed photos.
type PhotoArchive interface {
	Put(ctx context.Context, key string, jpeg []byte) (string, error)
}
