package tradier

import "github.com/xhhuango/json"

type OptionExpirations struct {
	Expirations struct {
		Expiration []struct {
			Date           string `json:"date"`
			ContractSize   int    `json:"contract_size"`
			ExpirationType string `json:"expiration_type"`
		} `json:"expiration"`
	} `json:"expirations"`
}

// Greeks carries the ORATS implied volatilities attached to a chain row.
type Greeks struct {
	Delta     float64 `json:"delta"`
	BidIv     float64 `json:"bid_iv"`
	MidIv     float64 `json:"mid_iv"`
	AskIv     float64 `json:"ask_iv"`
	SmvVol    float64 `json:"smv_vol"`
	UpdatedAt string  `json:"updated_at"`
}

type Option struct {
	Symbol         string  `json:"symbol"`
	Underlying     string  `json:"underlying"`
	Strike         float64 `json:"strike"`
	Bid            float64 `json:"bid"`
	Ask            float64 `json:"ask"`
	OpenInterest   int     `json:"open_interest"`
	ExpirationDate string  `json:"expiration_date"`
	OptionType     string  `json:"option_type"`
	Greeks         Greeks  `json:"greeks"`
}

type OptionChain struct {
	Options        OptionList `json:"options"`
	ExpirationDate string     `json:"expiration_date"`
}

// OptionList accepts both encodings Tradier uses for "option": an array, or
// a bare object when the chain has a single row.
type OptionList struct {
	Option []Option `json:"option"`
}

func (l *OptionList) UnmarshalJSON(b []byte) error {
	var raw struct {
		Option json.RawMessage `json:"option"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw.Option) == 0 || string(raw.Option) == "null" {
		l.Option = nil
		return nil
	}
	if raw.Option[0] == '[' {
		return json.Unmarshal(raw.Option, &l.Option)
	}
	var one Option
	if err := json.Unmarshal(raw.Option, &one); err != nil {
		return err
	}
	l.Option = []Option{one}
	return nil
}

type Quote struct {
	Symbol string  `json:"symbol"`
	Last   float64 `json:"last"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
}

type quotesResponse struct {
	Quotes struct {
		Quote Quote `json:"quote"`
	} `json:"quotes"`
}
