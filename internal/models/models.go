package models

// FrameFeature is one frame's pooled backbone feature vector
type FrameFeature struct {
	Frame     string    `json:"frame"`
	FrameNum  int       `json:"frame_num"`
	Embedding []float32 `json:"embedding"`
}

// FrameSearchResult is a similarity-search hit against stored features
type FrameSearchResult struct {
	VideoName   string
	FrameNumber int
	FramePath   string
	Similarity  float64
}
