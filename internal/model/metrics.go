package model

// FunnelCounts are the raw per-step counts metrics are computed from.
type FunnelCounts struct {
	TotalExport         int64 `json:"totalExport"`
	PendingVerification int64 `json:"pendingVerification"`
	SentVerification    int64 `json:"sentVerification"`
	Verified            int64 `json:"verified"`
	VerifiedWithCompURL int64 `json:"verifiedWithCompUrl"`
	PendingCompScrap    int64 `json:"pendingCompScrap"`
	SentCompScrap       int64 `json:"sentCompScrap"`
	Scraped             int64 `json:"scraped"`
	TotalWithCompURL    int64 `json:"totalWithCompUrl"`
	PendingBox1         int64 `json:"pendingBox1"`
	SentBox1            int64 `json:"sentBox1"`
	Drop                int64 `json:"dropCount"`
	Fit                 int64 `json:"fitCount"`
	Hit                 int64 `json:"hitCount"`
	Storage             int64 `json:"noHitFitCount"`
	PendingInstantly    int64 `json:"pendingInstantly"`
	SentInstantly       int64 `json:"sentInstantly"`
	Replied             int64 `json:"repliedCount"`
	PositiveReply       int64 `json:"positiveReplyCount"`
	Converted           int64 `json:"convertedCount"`
}

// Ratios are observed step conversion rates. A ratio is 0 when its
// denominator is 0.
type Ratios struct {
	Verification        float64 `json:"verificationRatio"`
	VerifiedWithCompURL float64 `json:"verifiedWithCompUrlRatio"`
	CompScrap           float64 `json:"compScrapRatio"`
	CompURL             float64 `json:"compUrlRatio"`
	Drop                float64 `json:"dropRatio"`
	Fit                 float64 `json:"fitRatio"`
	Hit                 float64 `json:"hitRatio"`
	Storage             float64 `json:"storageRatio"`
	FitHit              float64 `json:"fitHitRatio"`
	Reply               float64 `json:"replyRatio"`
	PositiveReply       float64 `json:"positiveReplyRatio"`
	Conversion          float64 `json:"conversionRatio"`
}

// Estimates extrapolate downstream volume by compounding ratios forward from
// TotalExport. They are projections, not live counts.
type Estimates struct {
	Verified      float64 `json:"estimatedVerified"`
	CompScrap     float64 `json:"estimatedCompScrap"`
	FitHit        float64 `json:"estimatedFitHit"`
	PositiveReply float64 `json:"estimatedPositiveReply"`
	Conversion    float64 `json:"estimatedConversion"`
}

// Metrics is the funnel report returned by GetMetrics.
type Metrics struct {
	Counts    FunnelCounts `json:"counts"`
	Ratios    Ratios       `json:"ratios"`
	Estimates Estimates    `json:"estimates"`
}

func ratio(num, den int64) float64 {
	if den <= 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// ComputeMetrics derives ratios and estimates from raw counts.
func ComputeMetrics(c FunnelCounts) Metrics {
	r := Ratios{
		Verification:        ratio(c.Verified, c.TotalExport),
		VerifiedWithCompURL: ratio(c.VerifiedWithCompURL, c.Verified),
		CompScrap:           ratio(c.Scraped, c.SentCompScrap),
		CompURL:             ratio(c.TotalWithCompURL, c.TotalExport),
		Drop:                ratio(c.Drop, c.SentBox1),
		Fit:                 ratio(c.Fit, c.SentBox1),
		Hit:                 ratio(c.Hit, c.SentBox1),
		Storage:             ratio(c.Storage, c.SentBox1),
		FitHit:              ratio(c.Fit+c.Hit, c.SentBox1),
		Reply:               ratio(c.Replied, c.SentInstantly),
		PositiveReply:       ratio(c.PositiveReply, c.Replied),
		Conversion:          ratio(c.Converted, c.PositiveReply),
	}

	var e Estimates
	e.Verified = float64(c.TotalExport) * r.Verification
	e.CompScrap = e.Verified * r.CompScrap
	e.FitHit = e.CompScrap * r.FitHit
	e.PositiveReply = e.FitHit * r.PositiveReply
	e.Conversion = e.PositiveReply * r.Conversion

	return Metrics{Counts: c, Ratios: r, Estimates: e}
}
