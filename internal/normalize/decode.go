package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeMap builds a typed RawRecord from a loosely typed payload such as a
// decoded JSON object. The "provider" key selects the record shape.
// Type mismatches are reported here; semantic validation (parsable amounts,
// timestamps, ids) is left to Normalize.
func DecodeMap(m map[string]interface{}) (RawRecord, error) {
	provider, err := getStringField(m, "provider", true)
	if err != nil {
		return nil, fmt.Errorf("DecodeMap: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(provider)) {
	case ProviderBank:
		return decodeBank(m)
	case ProviderCrypto:
		return decodeCrypto(m)
	case ProviderManual:
		return decodeManual(m)
	default:
		return nil, fmt.Errorf("DecodeMap: unknown provider %q", provider)
	}
}

// DecodeAll decodes a list of payloads, collecting per-element errors so that
// one bad element does not hide the others.
func DecodeAll(items []map[string]interface{}) ([]RawRecord, []error) {
	records := make([]RawRecord, 0, len(items))
	var errs []error
	for i, item := range items {
		rec, err := DecodeMap(item)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		records = append(records, rec)
	}
	return records, errs
}

func decodeBank(m map[string]interface{}) (RawRecord, error) {
	var r BankRecord
	var err error
	if r.ID, err = getStringField(m, "id", false); err != nil {
		return nil, err
	}
	if r.Institution, err = getStringField(m, "institution", false); err != nil {
		return nil, err
	}
	if r.Amount, err = getAmountField(m, "amount"); err != nil {
		return nil, err
	}
	if r.Date, err = getStringField(m, "date", false); err != nil {
		return nil, err
	}
	if r.Type, err = getStringField(m, "type", false); err != nil {
		return nil, err
	}
	if r.Status, err = getStringField(m, "status", false); err != nil {
		return nil, err
	}
	if r.Description, err = getStringField(m, "description", false); err != nil {
		return nil, err
	}
	if r.Category, err = getOptionalStringField(m, "category"); err != nil {
		return nil, err
	}
	if r.Currency, err = getStringField(m, "currency", false); err != nil {
		return nil, err
	}
	if r.AccountID, err = getStringField(m, "account_id", false); err != nil {
		return nil, err
	}
	if r.AccountName, err = getStringField(m, "account_name", false); err != nil {
		return nil, err
	}
	if r.Pending, err = getBoolField(m, "pending"); err != nil {
		return nil, err
	}
	if v, ok := m["running_balance"]; ok && v != nil {
		bal, err := getAmountField(m, "running_balance")
		if err != nil {
			return nil, err
		}
		r.RunningBalance = &bal
	}
	if v, ok := m["merchant"]; ok && v != nil {
		switch mv := v.(type) {
		case string:
			r.Merchant = &RawMerchant{Name: mv}
		case map[string]interface{}:
			name, err := getStringField(mv, "name", false)
			if err != nil {
				return nil, fmt.Errorf("merchant: %w", err)
			}
			display, err := getStringField(mv, "display_name", false)
			if err != nil {
				return nil, fmt.Errorf("merchant: %w", err)
			}
			r.Merchant = &RawMerchant{Name: name, DisplayName: display}
		default:
			return nil, fmt.Errorf("field %q has type %T, want object or string", "merchant", v)
		}
	}
	return r, nil
}

func decodeCrypto(m map[string]interface{}) (RawRecord, error) {
	var r CryptoRecord
	var err error
	if r.ID, err = getStringField(m, "id", false); err != nil {
		return nil, err
	}
	if r.Hash, err = getStringField(m, "hash", false); err != nil {
		return nil, err
	}
	if r.Network, err = getStringField(m, "network", false); err != nil {
		return nil, err
	}
	if r.Amount, err = getAmountField(m, "amount"); err != nil {
		return nil, err
	}
	if r.Asset, err = getStringField(m, "asset", false); err != nil {
		return nil, err
	}
	if r.Type, err = getStringField(m, "type", false); err != nil {
		return nil, err
	}
	if r.Status, err = getStringField(m, "status", false); err != nil {
		return nil, err
	}
	if r.Description, err = getStringField(m, "description", false); err != nil {
		return nil, err
	}
	if r.Category, err = getOptionalStringField(m, "category"); err != nil {
		return nil, err
	}
	if r.WalletAddress, err = getStringField(m, "wallet_address", false); err != nil {
		return nil, err
	}
	if r.WalletName, err = getStringField(m, "wallet_name", false); err != nil {
		return nil, err
	}
	// Indexers disagree on the timestamp shape: unix seconds or an ISO string.
	if v, ok := m["timestamp"]; ok && v != nil {
		switch tv := v.(type) {
		case string:
			r.Time = tv
		default:
			if r.Timestamp, err = getInt64Field(m, "timestamp"); err != nil {
				return nil, err
			}
		}
	}
	if r.Time == "" {
		if r.Time, err = getStringField(m, "time", false); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func decodeManual(m map[string]interface{}) (RawRecord, error) {
	var r ManualRecord
	var err error
	if r.ID, err = getStringField(m, "id", false); err != nil {
		return nil, err
	}
	if r.Amount, err = getAmountField(m, "amount"); err != nil {
		return nil, err
	}
	if r.Date, err = getStringField(m, "date", false); err != nil {
		return nil, err
	}
	if r.Type, err = getStringField(m, "type", false); err != nil {
		return nil, err
	}
	if r.Description, err = getStringField(m, "description", false); err != nil {
		return nil, err
	}
	if r.Category, err = getOptionalStringField(m, "category"); err != nil {
		return nil, err
	}
	if r.Merchant, err = getStringField(m, "merchant", false); err != nil {
		return nil, err
	}
	if r.Currency, err = getStringField(m, "currency", false); err != nil {
		return nil, err
	}
	if r.AccountID, err = getStringField(m, "account_id", false); err != nil {
		return nil, err
	}
	if r.AccountName, err = getStringField(m, "account_name", false); err != nil {
		return nil, err
	}
	return r, nil
}

func getStringField(m map[string]interface{}, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	switch val := v.(type) {
	case string:
		if required && strings.TrimSpace(val) == "" {
			return "", fmt.Errorf("required field %q is empty", key)
		}
		return val, nil
	default:
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
}

func getOptionalStringField(m map[string]interface{}, key string) (*string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil, nil
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want string or null", key, v)
	}
}

// getAmountField keeps the amount's textual form; an absent amount stays unset
// so that Normalize reports it.
func getAmountField(m map[string]interface{}, key string) (RawAmount, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return RawAmount{}, nil
	}
	switch val := v.(type) {
	case string:
		return AmountFromString(val), nil
	case json.Number:
		return AmountFromString(val.String()), nil
	case float64:
		return AmountFromFloat(val), nil
	case int:
		return AmountFromInt(int64(val)), nil
	case int64:
		return AmountFromInt(val), nil
	default:
		return RawAmount{}, fmt.Errorf("field %q has type %T, want string or number", key, v)
	}
}

func getBoolField(m map[string]interface{}, key string) (bool, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("field %q has type %T, want bool", key, v)
	}
	return b, nil
}

func getInt64Field(m map[string]interface{}, key string) (int64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, nil
	}
	switch val := v.(type) {
	case float64:
		if val != float64(int64(val)) {
			return 0, fmt.Errorf("field %q is %v, want an integer", key, val)
		}
		return int64(val), nil
	case int:
		return int64(val), nil
	case int64:
		return val, nil
	case json.Number:
		i, err := val.Int64()
		if err != nil {
			return 0, fmt.Errorf("field %q: %w", key, err)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("field %q has type %T, want integer", key, v)
	}
}
