package pricing

import "context"

// lookupFunc finds the active rules stored under one key; ok is false when no
// active row exists for the key at all.
type lookupFunc func(ctx context.Context, key string) (rules []TariffRule, ok bool, err error)

// withDefault applies the fallback policy shared by cities and transfer
// routes: the specific key first, then the "default" row, then an empty set.
// An empty set is a valid answer, not an error.
func withDefault(ctx context.Context, key string, specific, fallback lookupFunc) (TariffSet, error) {
	if key != "" {
		rules, ok, err := specific(ctx, key)
		if err != nil {
			return TariffSet{}, err
		}
		if ok {
			return TariffSet{Key: key, Source: SourceMatched, Rules: activeOnly(rules)}, nil
		}
	}

	rules, ok, err := fallback(ctx, DefaultKey)
	if err != nil {
		return TariffSet{}, err
	}
	if ok {
		return TariffSet{Key: DefaultKey, Source: SourceDefault, Rules: activeOnly(rules)}, nil
	}
	return TariffSet{Key: key, Source: SourceNone}, nil
}

func activeOnly(rules []TariffRule) []TariffRule {
	out := make([]TariffRule, 0, len(rules))
	for _, r := range rules {
		if r.Active {
			out = append(out, r)
		}
	}
	return out
}
