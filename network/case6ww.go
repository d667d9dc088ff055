package network

// Case6WW builds the 6-bus test system from Wood & Wollenberg, "Power
// Generation, Operation and Control" (example 3.7, pp. 104, 112, 119,
// 123-124, 549). Three generator buses, three 70 MW / 70 MVAr loads,
// eleven branches, quadratic costs, 100 MVA base.
func Case6WW() *Case {
	return &Case{
		Name:    "case6ww",
		BaseMVA: 100.0,
		Buses: []Bus{
			{ID: 1, Type: Ref, Vm: 1.05, BaseKV: 230, Zone: 1, VMax: 1.05, VMin: 1.05, Area: 1},
			{ID: 2, Type: PV, Vm: 1.05, BaseKV: 230, Zone: 1, VMax: 1.05, VMin: 1.05, Area: 1},
			{ID: 3, Type: PV, Vm: 1.07, BaseKV: 230, Zone: 1, VMax: 1.07, VMin: 1.07, Area: 1},
			{ID: 4, Type: PQ, Pd: 70, Qd: 70, Vm: 1.0, BaseKV: 230, Zone: 1, VMax: 1.05, VMin: 0.95, Area: 1},
			{ID: 5, Type: PQ, Pd: 70, Qd: 70, Vm: 1.0, BaseKV: 230, Zone: 1, VMax: 1.05, VMin: 0.95, Area: 1},
			{ID: 6, Type: PQ, Pd: 70, Qd: 70, Vm: 1.0, BaseKV: 230, Zone: 1, VMax: 1.05, VMin: 0.95, Area: 1},
		},
		Generators: []Generator{
			{Bus: 1, Pg: 0, Qg: 0, QMax: 100, QMin: -100, Vg: 1.05, MBase: 100, InService: true, PMax: 200, PMin: 50},
			{Bus: 2, Pg: 50, Qg: 0, QMax: 100, QMin: -100, Vg: 1.05, MBase: 100, InService: true, PMax: 150, PMin: 37.5},
			{Bus: 3, Pg: 60, Qg: 0, QMax: 100, QMin: -100, Vg: 1.07, MBase: 100, InService: true, PMax: 180, PMin: 45},
		},
		Branches: []Branch{
			{From: 1, To: 2, R: 0.10, X: 0.20, B: 0.04, RateA: 40, RateB: 40, RateC: 40, InService: true},
			{From: 1, To: 4, R: 0.05, X: 0.20, B: 0.04, RateA: 60, RateB: 60, RateC: 60, InService: true},
			{From: 1, To: 5, R: 0.08, X: 0.30, B: 0.06, RateA: 40, RateB: 40, RateC: 40, InService: true},
			{From: 2, To: 3, R: 0.05, X: 0.25, B: 0.06, RateA: 40, RateB: 40, RateC: 40, InService: true},
			{From: 2, To: 4, R: 0.05, X: 0.10, B: 0.02, RateA: 60, RateB: 60, RateC: 60, InService: true},
			{From: 2, To: 5, R: 0.10, X: 0.30, B: 0.04, RateA: 30, RateB: 30, RateC: 30, InService: true},
			{From: 2, To: 6, R: 0.07, X: 0.20, B: 0.05, RateA: 90, RateB: 90, RateC: 90, InService: true},
			{From: 3, To: 5, R: 0.12, X: 0.26, B: 0.05, RateA: 70, RateB: 70, RateC: 70, InService: true},
			{From: 3, To: 6, R: 0.02, X: 0.10, B: 0.02, RateA: 80, RateB: 80, RateC: 80, InService: true},
			{From: 4, To: 5, R: 0.20, X: 0.40, B: 0.08, RateA: 20, RateB: 20, RateC: 20, InService: true},
			{From: 5, To: 6, R: 0.10, X: 0.30, B: 0.06, RateA: 40, RateB: 40, RateC: 40, InService: true},
		},
		Areas: []Area{{ID: 1, RefBus: 1}},
		Costs: []GeneratorCost{
			{Model: Polynomial, Coeffs: []float64{0.00533, 11.669, 213.1}},
			{Model: Polynomial, Coeffs: []float64{0.00889, 10.333, 200.0}},
			{Model: Polynomial, Coeffs: []float64{0.00741, 10.833, 240.0}},
		},
	}
}
