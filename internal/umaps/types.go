package umaps

// Feature is one raw parcel as the service returns it. Attributes stay
// untyped until normalization.
type Feature struct {
	Attributes map[string]any `json:"attributes"`
	Geometry   *Geometry      `json:"geometry"`
}

// Geometry covers both shapes the layers return: point features carry
// X/Y, parcel polygons carry Rings.
type Geometry struct {
	X     float64       `json:"x"`
	Y     float64       `json:"y"`
	Rings [][][]float64 `json:"rings"`
}

// Page is the ArcGIS query response envelope. Error is set when the
// server reports a failure inside an HTTP 200. Count is only present on
// returnCountOnly responses.
type Page struct {
	Features              []Feature    `json:"features"`
	ExceededTransferLimit bool         `json:"exceededTransferLimit"`
	Count                 *int64       `json:"count"`
	Error                 *ServerError `json:"error"`
}

// QueryRequest selects one page of features from the configured layer.
type QueryRequest struct {
	Where          string
	OutFields      []string
	Offset         int64
	Count          int64
	OrderBy        string
	ReturnGeometry bool
}
