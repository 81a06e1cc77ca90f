package semantic

import (
	pb "github.com/qdrant/go-client/qdrant"

	"github.com/docent-ai/docent/engine/domain"
)

func str(v string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
}

func integer(v int) *pb.Value {
	return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(v)}}
}

func chunkPayload(namespace string, c domain.Chunk) map[string]*pb.Value {
	return map[string]*pb.Value{
		"namespace":  str(namespace),
		"doc_id":     str(c.DocID),
		"source":     str(c.Source),
		"content":    str(c.Text),
		"sequence":   integer(c.Sequence),
		"start":      integer(c.Start),
		"end":        integer(c.End),
		"start_page": integer(c.StartAnchor.Page),
		"start_para": integer(c.StartAnchor.Paragraph),
		"end_page":   integer(c.EndAnchor.Page),
		"end_para":   integer(c.EndAnchor.Paragraph),
	}
}

func chunkFromPayload(payload map[string]*pb.Value) domain.Chunk {
	get := func(k string) string { return payload[k].GetStringValue() }
	geti := func(k string) int { return int(payload[k].GetIntegerValue()) }

	return domain.Chunk{
		DocID:    get("doc_id"),
		Source:   get("source"),
		Text:     get("content"),
		Sequence: geti("sequence"),
		Start:    geti("start"),
		End:      geti("end"),
		StartAnchor: domain.Anchor{
			Page:      geti("start_page"),
			Paragraph: geti("start_para"),
		},
		EndAnchor: domain.Anchor{
			Page:      geti("end_page"),
			Paragraph: geti("end_para"),
		},
	}
}
