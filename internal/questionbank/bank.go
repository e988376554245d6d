package questionbank

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/parleyhq/parley/internal/interview"
)

const collectionName = "parley_questions"

// Question is one bank entry: a topic with its opening question, indexed by
// vector similarity to position descriptions.
type Question struct {
	ID           string
	TopicName    string
	Opening      string
	Positions    string // free-text position descriptions this suits
	TargetSkills []string
}

// Config holds connection settings for the question bank's Qdrant instance.
type Config struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Bank retrieves interview topics by vector similarity over Qdrant. It
// implements interview.TopicSource.
type Bank struct {
	conn        *grpc.ClientConn
	collections pb.CollectionsClient
	points      pb.PointsClient
	embedder    Embedder
	logger      *zap.Logger
}

// NewBank dials Qdrant and returns a ready bank.
func NewBank(cfg Config, embedder Embedder, logger *zap.Logger) (*Bank, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect %s: %w", addr, err)
	}
	return &Bank{
		conn:        conn,
		collections: pb.NewCollectionsClient(conn),
		points:      pb.NewPointsClient(conn),
		embedder:    embedder,
		logger:      logger,
	}, nil
}

// EnsureReady creates the question collection if it does not already exist.
func (b *Bank) EnsureReady(ctx context.Context) error {
	_, err := b.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: collectionName})
	if err == nil {
		return nil
	}
	_, err = b.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: collectionName,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(b.embedder.Dimension()),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", collectionName, err)
	}
	return nil
}

// Add indexes one question under its position description.
func (b *Bank) Add(ctx context.Context, q Question) error {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	vectors, err := b.embedder.Embed(ctx, []string{q.Positions + " " + q.TopicName})
	if err != nil {
		return fmt.Errorf("embed question %s: %w", q.TopicName, err)
	}

	payload := map[string]*pb.Value{
		"topic":   {Kind: &pb.Value_StringValue{StringValue: q.TopicName}},
		"opening": {Kind: &pb.Value_StringValue{StringValue: q.Opening}},
		"skills":  {Kind: &pb.Value_StringValue{StringValue: strings.Join(q.TargetSkills, ",")}},
	}
	_, err = b.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collectionName,
		Points: []*pb.PointStruct{
			{
				Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: q.ID}},
				Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vectors[0]}}},
				Payload: payload,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("upsert question %s: %w", q.TopicName, err)
	}
	return nil
}

// TopicsFor implements interview.TopicSource: the nearest topics to the
// position description, minus already-seen names.
func (b *Bank) TopicsFor(ctx context.Context, position string, exclude []string, n int) ([]interview.Topic, error) {
	vectors, err := b.embedder.Embed(ctx, []string{position})
	if err != nil {
		return nil, fmt.Errorf("embed position: %w", err)
	}

	// Over-fetch so exclusions still leave n candidates.
	limit := uint64(n + len(exclude))
	resp, err := b.points.Search(ctx, &pb.SearchPoints{
		CollectionName: collectionName,
		Vector:         vectors[0],
		Limit:          limit,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("search questions: %w", err)
	}

	seen := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		seen[strings.ToLower(name)] = true
	}

	topics := make([]interview.Topic, 0, n)
	for _, r := range resp.Result {
		topic := stringPayload(r.Payload, "topic")
		if topic == "" || seen[strings.ToLower(topic)] {
			continue
		}
		t := interview.Topic{
			Name:            topic,
			OpeningQuestion: stringPayload(r.Payload, "opening"),
		}
		if skills := stringPayload(r.Payload, "skills"); skills != "" {
			t.TargetSkills = strings.Split(skills, ",")
		}
		topics = append(topics, t)
		if len(topics) == n {
			break
		}
	}
	return topics, nil
}

func stringPayload(payload map[string]*pb.Value, key string) string {
	if v, ok := payload[key]; ok {
		if sv, ok := v.Kind.(*pb.Value_StringValue); ok {
			return sv.StringValue
		}
	}
	return ""
}

// Close tears down the underlying gRPC connection.
func (b *Bank) Close() error {
	return b.conn.Close()
}
