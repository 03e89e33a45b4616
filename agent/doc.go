// Package agent implements the tool-using conversational agent core: a
// turn-based loop that interleaves language-model completions with tool
// execution, maintains an append-only message history, and streams
// structured events to the caller.
//
// # Architecture
//
//   - Agent: the orchestrator. One Turn per user utterance; each turn
//     issues completions, dispatches requested tool calls in model order,
//     and terminates on a plain answer or step-budget exhaustion.
//   - History: the ordered, append-only conversation log. Seeded with the
//     system message and mutated only by the turn loop.
//   - ToolAdapter: boundary to the external tool transport. Tool failures
//     never abort a turn; they come back as model-visible error text.
//   - TurnEvent: closed union of assistant and tool events, emitted in
//     strict order over an unbuffered channel so the consumer can render
//     progress as it happens.
//
// # Quick Start
//
//	a := agent.New(llmClient, tools, agent.DefaultConfig())
//
//	stream, err := a.Turn(ctx, "list the files in my working directory")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for ev := range stream.Events() {
//	    switch ev.Kind {
//	    case agent.EventAssistant:
//	        fmt.Println(ev.Assistant.Text)
//	    case agent.EventTool:
//	        fmt.Println(ev.Tool.Name, ev.Tool.Content)
//	    }
//	}
//	if err := stream.Err(); err != nil {
//	    log.Fatal(err)
//	}
package agent
