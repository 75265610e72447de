package stat

// Source is the identity that granted a modifier. Sources are compared by
// identity, so callers pass pointers (a status instance, an item, a card).
//
// Precondition: every Source must be a comparable value.
type Source any

// Bucket records the provenance of a damage bonus.
type Bucket int

const (
	// BucketTemporary holds buffs that expire (status effects).
	BucketTemporary Bucket = iota
	// BucketGear holds equipment and card bonuses.
	BucketGear
	// BucketArtifact holds artifact bonuses.
	BucketArtifact
	// BucketPermanent holds meta-progression bonuses.
	BucketPermanent
	bucketCount
)

// Modifier is one additive bonus to a stat. It is immutable once created.
type Modifier struct {
	value  float64
	source Source
	bucket Bucket
}

// NewModifier creates a temporary-bucket modifier of value granted by source.
func NewModifier(value float64, source Source) Modifier {
	return Modifier{value: value, source: source, bucket: BucketTemporary}
}

// NewBucketModifier creates a modifier tagged with an explicit provenance bucket.
func NewBucketModifier(bucket Bucket, value float64, source Source) Modifier {
	if bucket < 0 || bucket >= bucketCount {
		bucket = BucketTemporary
	}
	return Modifier{value: value, source: source, bucket: bucket}
}

// Value returns the percent or flat amount of the modifier.
func (m Modifier) Value() float64 { return m.value }

// Source returns the granting identity.
func (m Modifier) Source() Source { return m.source }

// Bucket returns the provenance bucket.
func (m Modifier) Bucket() Bucket { return m.bucket }
