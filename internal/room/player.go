package room

// PlayerRecord is one entry in a room's roster. The wallet address is the
// unique key; everything else is replicated state the host owns.
type PlayerRecord struct {
	Address   string `json:"address"`
	Color     string `json:"color"`
	Ready     bool   `json:"ready"`
	HasStaked bool   `json:"hasStaked"`
	Signature []byte `json:"signature,omitempty"`
	IsBot     bool   `json:"isBot"`
}

// PlayerPatch is a partial update to a single PlayerRecord. Nil fields are
// left untouched so the same patch can be applied any number of times.
type PlayerPatch struct {
	Ready     *bool  `json:"ready,omitempty"`
	HasStaked *bool  `json:"hasStaked,omitempty"`
	Signature []byte `json:"signature,omitempty"`
	Color     string `json:"color,omitempty"`
}

// Apply merges the patch into the record. HasStaked only moves false→true;
// clearing it requires a full session reset.
func (p *PlayerRecord) Apply(patch PlayerPatch) {
	if patch.Ready != nil {
		p.Ready = *patch.Ready
	}
	if patch.HasStaked != nil && *patch.HasStaked {
		p.HasStaked = true
	}
	if len(patch.Signature) > 0 {
		p.Signature = append([]byte(nil), patch.Signature...)
	}
	if patch.Color != "" {
		p.Color = patch.Color
	}
}

// Clone returns a deep copy of the record.
func (p *PlayerRecord) Clone() PlayerRecord {
	out := *p
	if p.Signature != nil {
		out.Signature = append([]byte(nil), p.Signature...)
	}
	return out
}
