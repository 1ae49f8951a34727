package domain

import "strings"

// ClassAnnotation is the class of annotation index entries.
const ClassAnnotation = "annotation"

// AnnotationEntry binds the name and version of a pod or pipeline to its
// digest. Entries are stored under their Key, so one name@version keeps
// referring to one definition.
type AnnotationEntry struct {
	// Kind is ClassPod or ClassPipeline.
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
	Digest      Digest `json:"digest"`
}

// NewAnnotationEntry returns the index entry of a definition of class kind.
// Definitions without an annotation name are not indexed.
func NewAnnotationEntry(kind string, a *Annotation, d Digest) (AnnotationEntry, bool) {
	if a == nil || strings.TrimSpace(a.Name) == "" {
		return AnnotationEntry{}, false
	}
	return AnnotationEntry{
		Kind:        kind,
		Name:        strings.TrimSpace(a.Name),
		Version:     strings.TrimSpace(a.Version),
		Description: strings.TrimSpace(a.Description),
		Digest:      d,
	}, true
}

// AnnotationKey is the address of the entry for name@version of class kind.
func AnnotationKey(kind, name, version string) Digest {
	return Hash([]byte(ClassAnnotation + "\x00" + kind + "\x00" + name + "\x00" + version))
}

// Key returns the address the entry is stored under.
func (e AnnotationEntry) Key() Digest {
	return AnnotationKey(e.Kind, e.Name, e.Version)
}

// Label returns name@version, or the bare name when there is no version.
func (e AnnotationEntry) Label() string {
	if e.Version == "" {
		return e.Name
	}
	return e.Name + "@" + e.Version
}

// Encode returns the canonical bytes of the entry.
func (e AnnotationEntry) Encode() ([]byte, error) {
	return encodeEnvelope(ClassAnnotation, e)
}

// DecodeAnnotationEntry reads an entry from its canonical bytes.
func DecodeAnnotationEntry(b []byte) (AnnotationEntry, error) {
	return decodeEnvelope[AnnotationEntry](ClassAnnotation, b)
}

// ParseLabel splits name@version at the last "@". A label without "@" has
// an empty version.
func ParseLabel(s string) (name, version string) {
	s = strings.TrimSpace(s)
	i := strings.LastIndex(s, "@")
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i+1:]
}
