package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/meikuraledutech/storygraph"
	"github.com/meikuraledutech/storygraph/filestore"
	"github.com/meikuraledutech/storygraph/log"
)

const storyboard = "```json\n" + `{"shots":[
  {"shot_id":"1_1","scene":"harbour at night","action":"a ferry docks"},
  {"shot_id":"1_2","scene":"fish market","action":"crowd parts"}
]}` + "\n```"

const picPrompts = `{"shots":[{"shot_id":"1_1","positive_prompt":"ferry, rain, neon reflections","negative_prompt":"blurry"}]}`

// canned stands in for the model services.
func canned(_ context.Context, req *storygraph.Request) (*storygraph.Result, error) {
	switch req.Type {
	case storygraph.TypeStoryboard:
		return storygraph.TextResult(storyboard), nil
	case storygraph.TypePicPrompt:
		return storygraph.TextResult(picPrompts), nil
	case storygraph.TypeKeyImage:
		fmt.Printf("  image prompt: %q\n", req.Image.Prompt)
		return &storygraph.Result{Images: []string{"/api/file/a.png", "/api/file/b.png"}}, nil
	}
	return nil, fmt.Errorf("no canned answer for %s", req.Type)
}

func main() {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "storygraph-example")
	if err != nil {
		log.Fatalf("temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	store, err := filestore.New(dir)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	s, err := storygraph.Open(ctx, store, "harbour", storygraph.WithGenerator(storygraph.GeneratorFunc(canned)))
	if err != nil {
		log.Fatalf("open: %v", err)
	}

	// ── Script -> storyboard ──────────────────────────────────────────
	script, err := s.CreateNode(ctx, storygraph.TypeScript, storygraph.Position{})
	if err != nil {
		log.Fatalf("create script: %v", err)
	}
	board, err := s.CreateNode(ctx, storygraph.TypeStoryboard, storygraph.Position{X: 280})
	if err != nil {
		log.Fatalf("create storyboard: %v", err)
	}
	if _, ok, err := s.CreateEdge(ctx, script.ID, board.ID, storygraph.PortScript, storygraph.PortScript); err != nil || !ok {
		log.Fatalf("connect script: ok=%v err=%v", ok, err)
	}

	if _, err := s.Run(ctx, board.ID); err != nil {
		log.Fatalf("run storyboard: %v", err)
	}
	_, shots, err := s.Approve(ctx, board.ID)
	if err != nil {
		log.Fatalf("approve storyboard: %v", err)
	}
	fmt.Println("storyboard approved, shot nodes:")
	printJSON(shots)

	// ── Shot -> image prompt -> video prompt ──────────────────────────
	_, chained, err := s.Confirm(ctx, shots.Nodes[0])
	if err != nil {
		log.Fatalf("confirm shot: %v", err)
	}
	pic := chained.Nodes[0]
	if _, err := s.Run(ctx, pic); err != nil {
		log.Fatalf("run image prompt: %v", err)
	}
	_, chained, err = s.Approve(ctx, pic)
	if err != nil {
		log.Fatalf("approve image prompt: %v", err)
	}
	fmt.Println("\nimage prompt approved, video prompt node:")
	printJSON(chained)

	// ── Key image ─────────────────────────────────────────────────────
	key, err := s.CreateNode(ctx, storygraph.TypeKeyImage, storygraph.Position{X: 1120})
	if err != nil {
		log.Fatalf("create key image: %v", err)
	}
	if _, ok, err := s.CreateEdge(ctx, pic, key.ID, storygraph.PortPicPrompts, storygraph.PortPicPrompts); err != nil || !ok {
		log.Fatalf("connect key image: ok=%v err=%v", ok, err)
	}
	if _, err := s.UpdateData(ctx, key.ID, map[string]any{"keypic_gen_mode": storygraph.ImageModeAPI}); err != nil {
		log.Fatalf("configure key image: %v", err)
	}
	fmt.Println("\nkey image:")
	key, err = s.Run(ctx, key.ID)
	if err != nil {
		log.Fatalf("run key image: %v", err)
	}
	fmt.Printf("  images: %v\n", key.OutputImages)

	// ── Refresh invalidates downstream ────────────────────────────────
	_, reset, err := s.Refresh(ctx, pic)
	if err != nil {
		log.Fatalf("refresh: %v", err)
	}
	fmt.Printf("\nrefreshed %s, invalidated %v\n", pic, reset)

	fmt.Println("\nfinal statuses:")
	p := s.Project()
	ids := make([]string, 0, len(p.Nodes))
	for id := range p.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Printf("  %-40s %s\n", id, p.Nodes[id].Status)
	}
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
