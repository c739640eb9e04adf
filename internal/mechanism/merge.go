package mechanism

// Overlay layers over on top of base. Scalars and slices set in over replace
// those of base; maps merge key by key with the same rule.
func Overlay(base, over Descriptor) Descriptor {
	return Descriptor{
		Inherit:          overlayString(base.Inherit, over.Inherit),
		Variants:         overlayMap(base.Variants, over.Variants, overlayString),
		Formats:          overlayMap(base.Formats, over.Formats, overlayString),
		Transformations:  overlayMap(base.Transformations, over.Transformations, OverlayAdapter),
		Integrations:     overlayMap(base.Integrations, over.Integrations, OverlayAdapter),
		IgnoreExtensions: overlaySlice(base.IgnoreExtensions, over.IgnoreExtensions),
		TargetExtensions: overlayMap(base.TargetExtensions, over.TargetExtensions, overlayString),
	}
}

// OverlayAdapter layers over on top of base using the Overlay rule.
func OverlayAdapter(base, over Adapter) Adapter {
	return Adapter{
		Interface:   overlayString(base.Interface, over.Interface),
		Type:        overlayString(base.Type, over.Type),
		Method:      overlayString(base.Method, over.Method),
		Command:     overlayString(base.Command, over.Command),
		Interpreter: overlayString(base.Interpreter, over.Interpreter),
		Redirect:    overlayString(base.Redirect, over.Redirect),
		Root:        overlayString(base.Root, over.Root),
		Options:     overlaySlice(base.Options, over.Options),
		Inherit:     overlayString(base.Inherit, over.Inherit),
		Defaults:    MergeValues(base.Defaults, over.Defaults),
	}
}

// MergeValues merges untyped trees. Nested maps merge recursively and any
// other value in over replaces the one in base. Neither input is modified.
func MergeValues(base, over map[string]any) map[string]any {
	if base == nil && over == nil {
		return nil
	}
	out := make(map[string]any, len(base)+len(over))
	for k, v := range base {
		out[k] = cloneValue(v)
	}
	for k, v := range over {
		inner, isMap := v.(map[string]any)
		existing, wasMap := out[k].(map[string]any)
		if isMap && wasMap {
			out[k] = MergeValues(existing, inner)
			continue
		}
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return MergeValues(typed, nil)
	case []any:
		return append([]any(nil), typed...)
	default:
		return v
	}
}

func overlayString(base, over string) string {
	if over != "" {
		return over
	}
	return base
}

func overlaySlice[T any](base, over []T) []T {
	if over != nil {
		return append([]T{}, over...)
	}
	if base != nil {
		return append([]T{}, base...)
	}
	return nil
}

func overlayMap[V any](base, over map[string]V, merge func(V, V) V) map[string]V {
	if base == nil && over == nil {
		return nil
	}
	out := make(map[string]V, len(base)+len(over))
	for k, v := range base {
		out[k] = merge(v, *new(V))
	}
	for k, v := range over {
		if existing, ok := out[k]; ok {
			out[k] = merge(existing, v)
			continue
		}
		out[k] = merge(*new(V), v)
	}
	return out
}
