package rias

import "fmt"

// Strategy names accepted in configuration.
const (
	StrategyLoadBalanced Strategy = "load-balanced"
	StrategyRegional     Strategy = "regional"
	StrategyLeastPlayers Strategy = "least-players"
	StrategyLeastLoad    Strategy = "least-load"
	StrategyPriority     Strategy = "priority"
)

// Strategy selects which node hosts a new player. The eligible set passed to
// a strategy is always non-empty and contains only ready nodes, in registry
// order; ties on the selection key keep the earliest node.
type Strategy string

// ParseStrategy validates a configured strategy name. The empty string maps
// to [StrategyLoadBalanced].
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return StrategyLoadBalanced, nil
	case StrategyLoadBalanced, StrategyRegional, StrategyLeastPlayers, StrategyLeastLoad, StrategyPriority:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown node selection strategy %q", s)
}

// selectNode applies the strategy to the eligible nodes. region is the
// caller's regional hint, only meaningful under [StrategyRegional].
func selectNode(strategy Strategy, eligible []*Node, region string) (*Node, error) {
	if len(eligible) == 0 {
		return nil, ErrNoAvailableNodes
	}
	if len(eligible) == 1 {
		return eligible[0], nil
	}

	switch strategy {
	case StrategyRegional:
		var regional []*Node
		for _, n := range eligible {
			if n.Config().Region == region && region != "" {
				regional = append(regional, n)
			}
		}
		if len(regional) > 0 {
			return minByKey(regional, loadBalancedKey), nil
		}
		// No regional match; fall back to load balancing over everything.
		return minByKey(eligible, loadBalancedKey), nil

	case StrategyLeastPlayers:
		return minByKey(eligible, func(n *Node) float64 {
			if s := n.Stats(); s != nil {
				return float64(s.Players)
			}
			return 0
		}), nil

	case StrategyLeastLoad:
		return minByKey(eligible, func(n *Node) float64 {
			if s := n.Stats(); s != nil {
				return s.CPU.LavalinkLoad
			}
			return 0
		}), nil

	case StrategyPriority:
		return minByKey(eligible, func(n *Node) float64 {
			return float64(n.Config().Priority)
		}), nil

	default:
		return minByKey(eligible, loadBalancedKey), nil
	}
}

// loadBalancedKey combines CPU load with player population: a node gets 10%
// heavier per hosted player.
func loadBalancedKey(n *Node) float64 {
	s := n.Stats()
	if s == nil {
		return 0
	}
	return s.CPU.LavalinkLoad * (1 + float64(s.Players)*0.1)
}

// minByKey returns the first node with the smallest key.
func minByKey(nodes []*Node, key func(*Node) float64) *Node {
	best := nodes[0]
	bestKey := key(best)
	for _, n := range nodes[1:] {
		if k := key(n); k < bestKey {
			best, bestKey = n, k
		}
	}
	return best
}
