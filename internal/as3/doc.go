// Package as3 models the subset of the AS3 declarative document schema
// the agent needs and translates domain objects into TLS profile
// objects ready to embed in a declaration. Builders are pure: they
// perform no I/O and the only failure mode is an unmappable client
// authentication setting.
package as3
