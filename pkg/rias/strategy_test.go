package rias

import (
	"errors"
	"testing"

	"github.com/MrWong99/rias/pkg/lavalink"
)

// statNode fabricates a ready node with the given stats, no socket involved.
func statNode(id, region string, priority, players int, load float64) *Node {
	n := NewNode(NodeConfig{
		ID: id, Host: "localhost", Port: 2333, Password: "x",
		Region: region, Priority: priority,
	})
	n.mu.Lock()
	n.state = NodeConnected
	n.sessionID = "s"
	n.stats = &lavalink.Stats{
		Players: players,
		CPU:     lavalink.CPU{LavalinkLoad: load},
	}
	n.mu.Unlock()
	return n
}

func TestParseStrategy(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]Strategy{
		"":              StrategyLoadBalanced,
		"load-balanced": StrategyLoadBalanced,
		"regional":      StrategyRegional,
		"least-players": StrategyLeastPlayers,
		"least-load":    StrategyLeastLoad,
		"priority":      StrategyPriority,
	} {
		got, err := ParseStrategy(in)
		if err != nil || got != want {
			t.Fatalf("ParseStrategy(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseStrategy("round-robin"); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func TestSelectNode_EmptyAndSingle(t *testing.T) {
	t.Parallel()
	if _, err := selectNode(StrategyLoadBalanced, nil, ""); !errors.Is(err, ErrNoAvailableNodes) {
		t.Fatalf("got %v, want ErrNoAvailableNodes", err)
	}

	only := statNode("solo", "", 0, 99, 0.99)
	got, err := selectNode(StrategyLeastLoad, []*Node{only}, "")
	if err != nil || got != only {
		t.Fatalf("single node not short-circuited: %v, %v", got, err)
	}
}

func TestSelectNode_LoadBalanced(t *testing.T) {
	t.Parallel()
	// Key is load scaled by population: 0.5*(1+2*0.1)=0.60 beats
	// 0.4*(1+10*0.1)=0.80.
	busy := statNode("busy", "", 0, 10, 0.4)
	calm := statNode("calm", "", 0, 2, 0.5)
	got, err := selectNode(StrategyLoadBalanced, []*Node{busy, calm}, "")
	if err != nil || got != calm {
		t.Fatalf("selected %v, want calm", got.ID())
	}
}

func TestSelectNode_LoadBalancedTieKeepsEarliest(t *testing.T) {
	t.Parallel()
	a := statNode("a", "", 0, 1, 0.3)
	b := statNode("b", "", 0, 1, 0.3)
	got, err := selectNode(StrategyLoadBalanced, []*Node{a, b}, "")
	if err != nil || got != a {
		t.Fatalf("tie selected %v, want a", got.ID())
	}
}

func TestSelectNode_NoStatsTreatedAsIdle(t *testing.T) {
	t.Parallel()
	fresh := statNode("fresh", "", 0, 0, 0)
	fresh.mu.Lock()
	fresh.stats = nil
	fresh.mu.Unlock()
	loaded := statNode("loaded", "", 0, 5, 0.5)

	got, err := selectNode(StrategyLoadBalanced, []*Node{loaded, fresh}, "")
	if err != nil || got != fresh {
		t.Fatalf("selected %v, want the stats-less node", got.ID())
	}
}

func TestSelectNode_LeastPlayers(t *testing.T) {
	t.Parallel()
	a := statNode("a", "", 0, 7, 0.1)
	b := statNode("b", "", 0, 3, 0.9)
	got, err := selectNode(StrategyLeastPlayers, []*Node{a, b}, "")
	if err != nil || got != b {
		t.Fatalf("selected %v, want b", got.ID())
	}
}

func TestSelectNode_LeastLoad(t *testing.T) {
	t.Parallel()
	a := statNode("a", "", 0, 1, 0.8)
	b := statNode("b", "", 0, 50, 0.2)
	got, err := selectNode(StrategyLeastLoad, []*Node{a, b}, "")
	if err != nil || got != b {
		t.Fatalf("selected %v, want b", got.ID())
	}
}

func TestSelectNode_PriorityLowerWins(t *testing.T) {
	t.Parallel()
	a := statNode("a", "", 5, 0, 0)
	b := statNode("b", "", 1, 0, 0)
	c := statNode("c", "", 1, 0, 0)
	got, err := selectNode(StrategyPriority, []*Node{a, b, c}, "")
	if err != nil || got != b {
		t.Fatalf("selected %v, want b (lowest priority, earliest)", got.ID())
	}
}

func TestSelectNode_RegionalPrefersMatch(t *testing.T) {
	t.Parallel()
	us1 := statNode("us1", "us", 0, 0, 0.1)
	eu := statNode("eu", "eu", 0, 0, 0.9)
	us2 := statNode("us2", "us", 0, 0, 0.05)

	got, err := selectNode(StrategyRegional, []*Node{us1, eu, us2}, "us")
	if err != nil || got != us2 {
		t.Fatalf("selected %v, want us2 (least-loaded regional match)", got.ID())
	}
}

func TestSelectNode_RegionalFallsBackToLoadBalanced(t *testing.T) {
	t.Parallel()
	// No node covers ap-south; the least-loaded node overall wins.
	us1 := statNode("us1", "us", 0, 2, 0.5)
	eu := statNode("eu", "eu", 0, 0, 0.1)
	us2 := statNode("us2", "us", 0, 3, 0.6)

	got, err := selectNode(StrategyRegional, []*Node{us1, eu, us2}, "ap-south")
	if err != nil || got != eu {
		t.Fatalf("selected %v, want eu", got.ID())
	}
}

func TestSelectNode_RegionalEmptyHint(t *testing.T) {
	t.Parallel()
	// An empty hint never matches a region, even an empty-string one.
	a := statNode("a", "", 0, 0, 0.9)
	b := statNode("b", "eu", 0, 0, 0.1)
	got, err := selectNode(StrategyRegional, []*Node{a, b}, "")
	if err != nil || got != b {
		t.Fatalf("selected %v, want b via load-balanced fallback", got.ID())
	}
}
