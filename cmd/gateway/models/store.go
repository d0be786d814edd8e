package models

// OutcomeKind classifies what happened to one item of a STOW-RS store
// request.
type OutcomeKind int

const (
	// OutcomeStored means the item was persisted by the repository.
	OutcomeStored OutcomeKind = iota
	// OutcomeFiltered means the item was discarded because its study
	// did not match the request's expected study. It is still reported
	// in the success sequence, with a warning reason.
	OutcomeFiltered
	// OutcomeFailed means the repository rejected the item.
	OutcomeFailed
)

// Status reason codes, as 16-bit values of the WarningReason and
// FailureReason tags.
const (
	// ReasonElementsDiscarded (B006H) marks a filtered item.
	ReasonElementsDiscarded uint16 = 0xB006
	// ReasonProcessingFailure (0110H) marks a store failure.
	ReasonProcessingFailure uint16 = 0x0110
)

// StoreOutcome records the fate of one multipart item during ingestion.
// RetrieveURL is set for stored items only; ReasonCode for filtered and
// failed ones.
type StoreOutcome struct {
	SOPClassUID    string
	SOPInstanceUID string
	Kind           OutcomeKind
	RetrieveURL    string
	ReasonCode     uint16
}

// SOPReference is one entry of a status sequence.
type SOPReference struct {
	SOPClassUID    string
	SOPInstanceUID string
	RetrieveURL    string
	ReasonCode     uint16
}

// StatusDocument is the representation-agnostic STOW-RS response: an
// ordered success sequence (stored and filtered items), an ordered
// failure sequence, and the study-level retrieve URL recorded at the
// first non-filtered item. Sequence order matches request order.
type StatusDocument struct {
	RetrieveURL string
	Success     []SOPReference
	Failed      []SOPReference
}
