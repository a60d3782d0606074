package models

// LogEntry is one flattened event attribute of a transaction result.
type LogEntry struct {
	Msg   int    `json:"msg"`
	Type  string `json:"type"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

type TxResult struct {
	TxHash   string     `json:"txhash"`
	Code     uint32     `json:"code"`
	Height   int64      `json:"height"`
	GasUsed  int64      `json:"gas_used"`
	RawLog   string     `json:"raw_log,omitempty"`
	ArrayLog []LogEntry `json:"array_log"`
}

// Find returns the value of the first log entry with the given type and key.
func (r *TxResult) Find(typ, key string) (string, bool) {
	for _, l := range r.ArrayLog {
		if l.Type == typ && l.Key == key {
			return l.Value, true
		}
	}
	return "", false
}
