package x402

import "context"

// VerifyContext carries the inputs and, after the call, the outcome of a
// verification into lifecycle hooks.
type VerifyContext struct {
	Payload      PaymentPayload
	Requirements PaymentRequirements
	Result       *VerifyResponse
	Err          error
}

// SettleContext carries the inputs and outcome of a settlement into
// lifecycle hooks.
type SettleContext struct {
	Payload      PaymentPayload
	Requirements PaymentRequirements
	Result       *SettleResponse
	Err          error
}

// Hooks are optional callbacks around verify and settle. Before hooks may
// abort the operation by returning an error; After and OnFailure hooks are
// observational. All hooks run synchronously on the request path.
type Hooks struct {
	BeforeVerify    func(ctx context.Context, vc *VerifyContext) error
	AfterVerify     func(ctx context.Context, vc *VerifyContext)
	OnVerifyFailure func(ctx context.Context, vc *VerifyContext)

	BeforeSettle    func(ctx context.Context, sc *SettleContext) error
	AfterSettle     func(ctx context.Context, sc *SettleContext)
	OnSettleFailure func(ctx context.Context, sc *SettleContext)
}

func (h *Hooks) beforeVerify(ctx context.Context, vc *VerifyContext) error {
	if h == nil || h.BeforeVerify == nil {
		return nil
	}
	return h.BeforeVerify(ctx, vc)
}

func (h *Hooks) afterVerify(ctx context.Context, vc *VerifyContext) {
	if h == nil {
		return
	}
	failed := vc.Err != nil || (vc.Result != nil && !vc.Result.IsValid)
	if failed && h.OnVerifyFailure != nil {
		h.OnVerifyFailure(ctx, vc)
	}
	if h.AfterVerify != nil {
		h.AfterVerify(ctx, vc)
	}
}

func (h *Hooks) beforeSettle(ctx context.Context, sc *SettleContext) error {
	if h == nil || h.BeforeSettle == nil {
		return nil
	}
	return h.BeforeSettle(ctx, sc)
}

func (h *Hooks) afterSettle(ctx context.Context, sc *SettleContext) {
	if h == nil {
		return
	}
	failed := sc.Err != nil || (sc.Result != nil && !sc.Result.Success)
	if failed && h.OnSettleFailure != nil {
		h.OnSettleFailure(ctx, sc)
	}
	if h.AfterSettle != nil {
		h.AfterSettle(ctx, sc)
	}
}
