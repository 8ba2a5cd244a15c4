package config

import "maps"

// Overrides are caller-supplied compiler options for one target. Unset
// fields leave the target default untouched.
type Overrides struct {
	Bundle    *bool             `yaml:"bundle,omitempty"`
	Minify    *bool             `yaml:"minify,omitempty"`
	Sourcemap *bool             `yaml:"sourcemap,omitempty"`
	Splitting *bool             `yaml:"splitting,omitempty"`
	Format    string            `yaml:"format,omitempty"`
	Platform  string            `yaml:"platform,omitempty"`
	LogLevel  string            `yaml:"log_level,omitempty"`
	Tsconfig  string            `yaml:"tsconfig,omitempty"`
	Target    []string          `yaml:"target,omitempty"`
	External  []string          `yaml:"external,omitempty"`
	Define    map[string]string `yaml:"define,omitempty"`
	Loader    map[string]string `yaml:"loader,omitempty"`
	Alias     map[string]string `yaml:"alias,omitempty"`
}

// TargetOptions holds the overrides for one target. Dev is layered on top
// when the run is in dev mode.
type TargetOptions struct {
	Overrides `yaml:",inline"`
	Dev       *Overrides `yaml:"dev,omitempty"`
}

// Resolve returns the effective overrides for the given dev flag.
func (t TargetOptions) Resolve(dev bool) Overrides {
	out := t.Overrides.clone()
	if dev && t.Dev != nil {
		out = out.merge(*t.Dev)
	}
	return out
}

func (o Overrides) clone() Overrides {
	out := o
	out.Target = append([]string(nil), o.Target...)
	out.External = append([]string(nil), o.External...)
	out.Define = maps.Clone(o.Define)
	out.Loader = maps.Clone(o.Loader)
	out.Alias = maps.Clone(o.Alias)
	return out
}

// merge layers top over o. Scalars and lists in top replace; maps are merged key by key.
func (o Overrides) merge(top Overrides) Overrides {
	out := o
	if top.Bundle != nil {
		out.Bundle = top.Bundle
	}
	if top.Minify != nil {
		out.Minify = top.Minify
	}
	if top.Sourcemap != nil {
		out.Sourcemap = top.Sourcemap
	}
	if top.Splitting != nil {
		out.Splitting = top.Splitting
	}
	if top.Format != "" {
		out.Format = top.Format
	}
	if top.Platform != "" {
		out.Platform = top.Platform
	}
	if top.LogLevel != "" {
		out.LogLevel = top.LogLevel
	}
	if top.Tsconfig != "" {
		out.Tsconfig = top.Tsconfig
	}
	if len(top.Target) > 0 {
		out.Target = append([]string(nil), top.Target...)
	}
	if len(top.External) > 0 {
		out.External = append([]string(nil), top.External...)
	}
	out.Define = mergeMap(o.Define, top.Define)
	out.Loader = mergeMap(o.Loader, top.Loader)
	out.Alias = mergeMap(o.Alias, top.Alias)
	return out
}

func mergeMap(base, top map[string]string) map[string]string {
	if len(top) == 0 {
		return base
	}
	out := make(map[string]string, len(base)+len(top))
	maps.Copy(out, base)
	maps.Copy(out, top)
	return out
}
