package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yjsyyyjszf/orthanc-dicomweb/cmd/gateway/models"
	"github.com/yjsyyyjszf/orthanc-dicomweb/common/clients"
	"github.com/yjsyyyjszf/orthanc-dicomweb/common/config"
	"github.com/yjsyyyjszf/orthanc-dicomweb/common/dwerr"
	"github.com/yjsyyyjszf/orthanc-dicomweb/common/multipart"
)

// ForwardService pushes repository instances to a remote DICOMweb
// server through STOW-RS, packing them into bounded multipart batches.
type ForwardService struct {
	repo         clients.Repository
	remote       clients.RemoteClient
	resolver     *ResolveService
	maxInstances int
	maxSizeBytes int
	log          clients.Logger
}

func NewForwardService(repo clients.Repository, remote clients.RemoteClient, resolver *ResolveService, cfg *config.Config, log clients.Logger) *ForwardService {
	return &ForwardService{
		repo:         repo,
		remote:       remote,
		resolver:     resolver,
		maxInstances: cfg.DicomWeb.StowMaxInstances,
		maxSizeBytes: cfg.StowMaxSizeBytes(),
		log:          log,
	}
}

// ForwardSummary reports what one forward call shipped.
type ForwardSummary struct {
	SentInstances int `json:"SentInstances"`
	Batches       int `json:"Batches"`
}

// Forward resolves the requested resources to instances and sends them
// to the remote server. Any unacknowledged batch aborts the whole call
// with NetworkProtocol; the caller cannot learn how much of the work
// landed before the abort, which mirrors the all-or-nothing reporting
// of STOW-RS itself.
func (s *ForwardService) Forward(ctx context.Context, server config.RemoteServer, req models.ForwardRequest) (*ForwardSummary, error) {
	instances, err := s.resolver.Resolve(ctx, req.Resources)
	if err != nil {
		return nil, err
	}

	uri := clients.BuildURI("studies", req.Arguments)
	batch, err := newBatchAccumulator(s.maxInstances, s.maxSizeBytes)
	if err != nil {
		return nil, err
	}

	summary := &ForwardSummary{}
	for _, instance := range instances {
		data, found, err := s.repo.GetBytes(ctx, "/instances/"+instance+"/file")
		if err != nil {
			return nil, err
		}
		if !found {
			s.log.Warn("instance vanished before forwarding, skipping", "instance", instance)
			continue
		}

		batch.add(data)
		if batch.full() {
			if err := s.flush(ctx, server, uri, req.HTTPHeaders, batch, summary); err != nil {
				return nil, err
			}
		}
	}

	if err := s.flush(ctx, server, uri, req.HTTPHeaders, batch, summary); err != nil {
		return nil, err
	}

	s.log.Info("forward complete", "instances", summary.SentInstances, "batches", summary.Batches)
	return summary, nil
}

func (s *ForwardService) flush(ctx context.Context, server config.RemoteServer, uri string, userHeaders map[string]string, batch *batchAccumulator, summary *ForwardSummary) error {
	if batch.count == 0 {
		return nil
	}

	body := batch.writer.Close()

	headers := map[string]string{
		"Accept": "application/dicom+json",
		"Expect": "",
		"Content-Type": fmt.Sprintf("%s; type=\"application/dicom\"; boundary=%s",
			multipart.RelatedType, batch.writer.Boundary()),
	}
	for name, value := range userHeaders {
		headers[name] = value
	}

	_, answer, err := s.remote.Call(ctx, server, "POST", uri, headers, body)
	if err != nil {
		return err
	}
	if err := checkStowAnswer(answer, batch.count); err != nil {
		return err
	}

	summary.SentInstances += batch.count
	summary.Batches++
	batch.reset()
	return nil
}

// batchAccumulator packs instances into one multipart body until the
// instance-count or byte-size ceiling is hit. A ceiling of zero means
// unbounded on that axis.
type batchAccumulator struct {
	writer       *multipart.Writer
	count        int
	maxInstances int
	maxSizeBytes int
}

func newBatchAccumulator(maxInstances, maxSizeBytes int) (*batchAccumulator, error) {
	writer, err := multipart.NewWriter()
	if err != nil {
		return nil, err
	}
	return &batchAccumulator{writer: writer, maxInstances: maxInstances, maxSizeBytes: maxSizeBytes}, nil
}

func (b *batchAccumulator) add(data []byte) {
	b.writer.Append("application/dicom", data)
	b.count++
}

func (b *batchAccumulator) full() bool {
	if b.maxInstances != 0 && b.count >= b.maxInstances {
		return true
	}
	if b.maxSizeBytes != 0 && b.writer.Len() >= b.maxSizeBytes {
		return true
	}
	return false
}

// reset discards the flushed body, keeping the boundary token so all
// batches of one operation share it.
func (b *batchAccumulator) reset() {
	b.writer.Reset()
	b.count = 0
}

// checkStowAnswer verifies the remote's STOW-RS status document: the
// success sequence must reference every instance of the batch, and the
// failure sequences must be absent or empty. Anything else means the
// remote lost instances, which aborts the forward.
func checkStowAnswer(answer []byte, sent int) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(answer, &doc); err != nil {
		return dwerr.Wrap(dwerr.NetworkProtocol, "remote STOW-RS answer is not a JSON object", err)
	}

	acked, ok, err := sequenceSize(doc, tagReferencedSOPSequence)
	if err != nil {
		return err
	}
	if !ok || acked != sent {
		return dwerr.Newf(dwerr.NetworkProtocol,
			"remote STOW-RS answer acknowledges %d of %d instances", acked, sent)
	}

	for _, tag := range []string{tagFailedSOPSequence, "0008119A"} {
		failed, ok, err := sequenceSize(doc, tag)
		if err != nil {
			return err
		}
		if ok && failed > 0 {
			return dwerr.Newf(dwerr.NetworkProtocol,
				"remote STOW-RS answer reports %d failed instances in %s", failed, tag)
		}
	}
	return nil
}

// sequenceSize counts the items of a sequence attribute, accepting both
// upper- and lower-case hexadecimal tag keys.
func sequenceSize(doc map[string]json.RawMessage, tag string) (int, bool, error) {
	raw, ok := doc[tag]
	if !ok {
		raw, ok = doc[strings.ToLower(tag)]
	}
	if !ok {
		return 0, false, nil
	}

	var attr struct {
		Value []json.RawMessage `json:"Value"`
	}
	if err := json.Unmarshal(raw, &attr); err != nil {
		return 0, false, dwerr.Wrap(dwerr.NetworkProtocol,
			fmt.Sprintf("remote STOW-RS answer carries a malformed %s attribute", tag), err)
	}
	return len(attr.Value), true, nil
}
