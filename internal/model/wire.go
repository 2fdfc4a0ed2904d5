package model

// DataPoint is a single sample as submitted to POST /api/put.
type DataPoint struct {
	Metric    string            `json:"metric"`
	Timestamp int64             `json:"timestamp"`
	Value     float64           `json:"value"`
	Tags      map[string]string `json:"tags"`
}

// PutStats is the response body for POST /api/put.
type PutStats struct {
	PointsWritten int64            `json:"pointsWritten"`
	WriteTimeMs   int64            `json:"writeTimeMs"`
	Kdps          float64          `json:"kdps"`
	MetricMisses  int              `json:"metricCacheMisses"`
	TagsetMisses  int              `json:"tagsetCacheMisses"`
	MetricMissRate float64         `json:"metricMissRate"`
	TagsetMissRate float64         `json:"tagsetMissRate"`
}

// FilterDto is the wire form of a single tag filter (§4.2, §6.2). Type is
// one of the short-form or long-form filter kind names; GroupBy marks the
// filter's key as a grouping axis for the aggregation path.
type FilterDto struct {
	Type    string `json:"type"`
	Tagk    string `json:"tagk"`
	Filter  string `json:"filter"`
	GroupBy bool   `json:"groupBy"`
}

// RateOptionsDto configures rate conversion (§4.7).
type RateOptionsDto struct {
	Counter    bool    `json:"counter"`
	CounterMax float64 `json:"counterMax"`
	ResetValue float64 `json:"resetValue"`
	DropResets bool    `json:"dropResets"`
}

// QueryPartDto is one sub-query of a QueryDto ("SubQuery" in OpenTSDB
// parlance).
type QueryPartDto struct {
	Metric       string            `json:"metric"`
	Tags         map[string]string `json:"tags,omitempty"`
	Aggregator   string            `json:"aggregator,omitempty"`
	Rate         bool              `json:"rate,omitempty"`
	RateOptions  *RateOptionsDto   `json:"rateOptions,omitempty"`
	Downsample   string            `json:"downsample,omitempty"`
	Filters      []FilterDto       `json:"filters,omitempty"`
	ExplicitTags bool              `json:"explicitTags,omitempty"`
}

// QueryDto is the POST /api/query request body.
type QueryDto struct {
	Start   string         `json:"start"`
	End     string         `json:"end,omitempty"`
	Queries []QueryPartDto `json:"queries"`
}

// DataPointsMap renders a bucket→value series the way OpenTSDB clients
// expect: keys are decimal unix-second strings, values are float64, null,
// or (for a literal NaN fill policy) the string "NaN".
type DataPointsMap map[string]interface{}

// QueryResultDto is one emitted series under POST /api/query.
type QueryResultDto struct {
	Metric        string            `json:"metric"`
	Tags          map[string]string `json:"tags"`
	AggregateTags []string          `json:"aggregateTags"`
	Dps           DataPointsMap     `json:"dps"`
}

// LastSubQueryDto requests the most recent point for a metric/tag
// combination.
type LastSubQueryDto struct {
	Metric  string            `json:"metric"`
	Tags    map[string]string `json:"tags,omitempty"`
	Filters []FilterDto       `json:"filters,omitempty"`
}

// LastQueryDto is the POST /api/query/last request body. BackScan bounds
// how far into the past (in hours) the last-point scan is allowed to look;
// 0 means unbounded.
type LastQueryDto struct {
	Queries  []LastSubQueryDto `json:"queries"`
	BackScan int               `json:"backScan,omitempty"`
}

// LastQueryResultDto is one emitted series under POST /api/query/last.
type LastQueryResultDto struct {
	Metric    string            `json:"metric"`
	Tags      map[string]string `json:"tags"`
	Timestamp int64             `json:"timestamp"`
	Value     float64           `json:"value"`
}

// TagPairDto is a literal (key,value) pair used by /api/search/lookup.
type TagPairDto struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// LookupRequestDto is the POST /api/search/lookup request body. Metric may
// contain a wildcard; Tags are literal-or-wildcard filters ANDed together.
type LookupRequestDto struct {
	Metric string       `json:"metric"`
	Tags   []TagPairDto `json:"tags,omitempty"`
	Limit  int          `json:"limit,omitempty"`
}

// LookupResultEntryDto is one matching series returned by
// /api/search/lookup.
type LookupResultEntryDto struct {
	Metric string            `json:"metric"`
	Tags   map[string]string `json:"tags"`
}

// LookupResponseDto is the full /api/search/lookup response.
type LookupResponseDto struct {
	Metric       string                  `json:"metric"`
	Tags         []TagPairDto            `json:"tags"`
	Results      []LookupResultEntryDto  `json:"results"`
	TotalResults int                     `json:"totalResults"`
}
