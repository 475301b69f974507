package ext2fs

import "strings"

// CompatFeature is the feature_compat bitset (§3/§6): a filesystem not
// understanding one of these bits can still mount it read-write safely.
type CompatFeature uint32

const (
	FeatureCompatDirPrealloc CompatFeature = 1 << iota
	FeatureCompatImagicInodes
	FeatureCompatHasJournal
	FeatureCompatExtAttr
	FeatureCompatResizeIno
	FeatureCompatDirIndex
)

func (f CompatFeature) Has(what CompatFeature) bool { return f&what == what }

func (f CompatFeature) String() string {
	var opt []string
	if f.Has(FeatureCompatDirPrealloc) {
		opt = append(opt, "DIR_PREALLOC")
	}
	if f.Has(FeatureCompatImagicInodes) {
		opt = append(opt, "IMAGIC_INODES")
	}
	if f.Has(FeatureCompatHasJournal) {
		opt = append(opt, "HAS_JOURNAL")
	}
	if f.Has(FeatureCompatExtAttr) {
		opt = append(opt, "EXT_ATTR")
	}
	if f.Has(FeatureCompatResizeIno) {
		opt = append(opt, "RESIZE_INO")
	}
	if f.Has(FeatureCompatDirIndex) {
		opt = append(opt, "DIR_INDEX")
	}
	return strings.Join(opt, "|")
}

// IncompatFeature is the feature_incompat bitset: any bit a mounter does
// not understand must abort the mount entirely. Only FILETYPE is
// supported here (§3).
type IncompatFeature uint32

const (
	FeatureIncompatCompression IncompatFeature = 1 << iota
	// FeatureIncompatFiletype corresponds to the package-level
	// FeatureFiletype constant in super.go and is the only incompat bit
	// this implementation understands.
	FeatureIncompatFiletype
	FeatureIncompatRecover
	FeatureIncompatJournalDev
	FeatureIncompatMetaBG
)

func (f IncompatFeature) Has(what IncompatFeature) bool { return f&what == what }

func (f IncompatFeature) String() string {
	var opt []string
	if f.Has(FeatureIncompatCompression) {
		opt = append(opt, "COMPRESSION")
	}
	if f.Has(FeatureIncompatFiletype) {
		opt = append(opt, "FILETYPE")
	}
	if f.Has(FeatureIncompatRecover) {
		opt = append(opt, "RECOVER")
	}
	if f.Has(FeatureIncompatJournalDev) {
		opt = append(opt, "JOURNAL_DEV")
	}
	if f.Has(FeatureIncompatMetaBG) {
		opt = append(opt, "META_BG")
	}
	return strings.Join(opt, "|")
}

// ROCompatFeature is the feature_ro_compat bitset: any bit a mounter
// does not understand must fall back to read-only (§3). This
// implementation supports none, matching original source's
// SUPPORTED_RO_COMPAT = 0.
type ROCompatFeature uint32

const (
	FeatureROCompatSparseSuper ROCompatFeature = 1 << iota
	FeatureROCompatLargeFile
	FeatureROCompatBTreeDir
)

func (f ROCompatFeature) Has(what ROCompatFeature) bool { return f&what == what }

func (f ROCompatFeature) String() string {
	var opt []string
	if f.Has(FeatureROCompatSparseSuper) {
		opt = append(opt, "SPARSE_SUPER")
	}
	if f.Has(FeatureROCompatLargeFile) {
		opt = append(opt, "LARGE_FILE")
	}
	if f.Has(FeatureROCompatBTreeDir) {
		opt = append(opt, "BTREE_DIR")
	}
	return strings.Join(opt, "|")
}

// Compat returns sb's feature_compat bitset with its String()/Has()
// helpers attached.
func (sb *Superblock) Compat() CompatFeature { return CompatFeature(sb.FeatureCompat) }

// Incompat returns sb's feature_incompat bitset.
func (sb *Superblock) Incompat() IncompatFeature { return IncompatFeature(sb.FeatureIncompat) }

// ROCompat returns sb's feature_ro_compat bitset.
func (sb *Superblock) ROCompat() ROCompatFeature { return ROCompatFeature(sb.FeatureROCompat) }
