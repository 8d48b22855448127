package search

// Reserved record numbers, per spec §3.
const (
	RecordConfig           uint32 = 0
	RecordPartialWordblob  uint32 = 1
	RecordAuxWordblobFirst uint32 = 2
	RecordAuxWordblobLast  uint32 = 4
	// RecordDeletedIDs is a supplement: the spec's reserved-record table
	// doesn't name a home for the engine's "self.deleted" mask (the
	// global tombstone set subtracted from every search per spec §4.4
	// "mask_deleted"), so we give it a stable slot in the otherwise
	// unused 5..999 range rather than keep it unpersisted.
	RecordDeletedIDs      uint32 = 5
	RecordHistoryStatus   uint32 = 1000
	RecordHistoryRingFirst uint32 = 1001
	RecordHistoryRingLast  uint32 = 2000
	RecordFirstKeyword    uint32 = 2001
)

// historyRingSize is the number of ring slots between
// RecordHistoryRingFirst and RecordHistoryRingLast inclusive.
const historyRingSize = RecordHistoryRingLast - RecordHistoryRingFirst + 1
