package combiner

// Record is one signer's recorded response: appended for every HTTP reply,
// accepted or not, so discrepancy analysis never misses a responding signer.
// Transport failures that produce no reply are not recorded.
type Record struct {
	Endpoint   Endpoint `json:"endpoint"`
	StatusCode int      `json:"status_code"`
	Body       []byte   `json:"body,omitempty"`
}

// MajorityCode tabulates non-2xx status codes across the records and returns
// the most frequent one. Ties break to the lowest numeric code so the verdict
// is deterministic regardless of arrival order. Returns false when no record
// carries a non-2xx code.
func MajorityCode(records []Record) (int, bool) {
	counts := map[int]int{}
	for _, r := range records {
		if r.StatusCode < 200 || r.StatusCode > 299 {
			counts[r.StatusCode]++
		}
	}
	best, n := 0, 0
	for code, c := range counts {
		if c > n || (c == n && code < best) {
			best, n = code, c
		}
	}
	if n == 0 {
		return 0, false
	}
	return best, true
}
