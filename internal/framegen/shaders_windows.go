//go:build windows && !cgo

package framegen

import "sync"

// Thread-group edge for both compute passes. The motion pass runs one thread
// per 8x8 block, the interpolation pass one thread per output pixel.
const gpuThreadGroup = 8

// gpuConstants is the root-constant/cbuffer block shared by both passes.
// Field order matches the Params cbuffer in the HLSL below.
type gpuConstants struct {
	Width     uint32
	Height    uint32
	Factor    float32
	Sharpness float32
}

// The GPU pipeline mirrors the CPU reference in interpolate.go and motion.go:
// same luma weights, same zero-offset-first tie break, same half-step
// cross-fade degradation on a zero field. Sources compile at runtime through
// d3dcompiler since no offline artifacts ship with the host.
const shaderCommonHLSL = `
cbuffer Params : register(b0)
{
    uint  FrameWidth;
    uint  FrameHeight;
    float Factor;
    float Sharpness;
};

Texture2D<float4> PrevFrame : register(t0);
Texture2D<float4> CurrFrame : register(t1);

float LumaAt(Texture2D<float4> tex, int2 p)
{
    float4 c = tex.Load(int3(p, 0));
    return dot(c.rgb, float3(0.299, 0.587, 0.114));
}
`

const motionShaderHLSL = shaderCommonHLSL + `
RWTexture2D<float2> MotionOut : register(u0);

static const int BlockSize    = 8;
static const int SearchRadius = 4;

float BlockSAD(int2 base, int2 offset)
{
    float sad = 0.0;
    [loop] for (int y = 0; y < BlockSize; ++y)
    {
        [loop] for (int x = 0; x < BlockSize; ++x)
        {
            int2 p = base + int2(x, y);
            if (p.x >= (int)FrameWidth || p.y >= (int)FrameHeight)
                continue;
            int2 q = p + offset;
            if (q.x < 0 || q.y < 0 || q.x >= (int)FrameWidth || q.y >= (int)FrameHeight)
                continue;
            sad += abs(LumaAt(CurrFrame, p) - LumaAt(PrevFrame, q));
        }
    }
    return sad;
}

[numthreads(8, 8, 1)]
void MainCS(uint3 id : SV_DispatchThreadID)
{
    int2 base = int2(id.xy) * BlockSize;
    if (base.x >= (int)FrameWidth || base.y >= (int)FrameHeight)
        return;

    // Zero displacement is scored first and only a strictly better SAD
    // displaces it, so identical frames always produce a zero field.
    float bestSad = BlockSAD(base, int2(0, 0));
    int2  bestOff = int2(0, 0);

    [loop] for (int dy = -SearchRadius; dy <= SearchRadius; ++dy)
    {
        [loop] for (int dx = -SearchRadius; dx <= SearchRadius; ++dx)
        {
            if (dx == 0 && dy == 0)
                continue;
            float sad = BlockSAD(base, int2(dx, dy));
            if (sad < bestSad)
            {
                bestSad = sad;
                bestOff = int2(dx, dy);
            }
        }
    }

    // The block in the current frame matched prev at base+offset, so the
    // content moved by -offset. Stored normalized to frame dimensions.
    MotionOut[id.xy] = float2(-bestOff) / float2(FrameWidth, FrameHeight);
}
`

const interpShaderHLSL = shaderCommonHLSL + `
Texture2D<float2>   Motion : register(t2);
RWTexture2D<float4> Output : register(u0);

float4 SampleBilinear(Texture2D<float4> tex, float2 uv)
{
    float2 p  = uv * float2(FrameWidth, FrameHeight) - 0.5;
    float2 f  = frac(p);
    int2   p0 = max(int2(floor(p)), int2(0, 0));
    int2   p1 = min(p0 + 1, int2(FrameWidth - 1, FrameHeight - 1));

    float4 c00 = tex.Load(int3(p0.x, p0.y, 0));
    float4 c10 = tex.Load(int3(p1.x, p0.y, 0));
    float4 c01 = tex.Load(int3(p0.x, p1.y, 0));
    float4 c11 = tex.Load(int3(p1.x, p1.y, 0));
    return lerp(lerp(c00, c10, f.x), lerp(c01, c11, f.x), f.y);
}

float2 SampleMotion(float2 uv)
{
    uint mw, mh;
    Motion.GetDimensions(mw, mh);

    float2 p  = uv * float2(mw, mh) - 0.5;
    float2 f  = frac(p);
    int2   p0 = max(int2(floor(p)), int2(0, 0));
    int2   p1 = min(p0 + 1, int2(int(mw) - 1, int(mh) - 1));

    float2 c00 = Motion.Load(int3(p0.x, p0.y, 0));
    float2 c10 = Motion.Load(int3(p1.x, p0.y, 0));
    float2 c01 = Motion.Load(int3(p0.x, p1.y, 0));
    float2 c11 = Motion.Load(int3(p1.x, p1.y, 0));
    return lerp(lerp(c00, c10, f.x), lerp(c01, c11, f.x), f.y);
}

float4 Reconstruct(float2 uv)
{
    float2 mv   = SampleMotion(uv);
    float4 prev = SampleBilinear(PrevFrame, uv - mv * (1.0 - Factor));
    float4 curr = SampleBilinear(CurrFrame, uv + mv * Factor);
    return lerp(prev, curr, Factor);
}

[numthreads(8, 8, 1)]
void MainCS(uint3 id : SV_DispatchThreadID)
{
    if (id.x >= FrameWidth || id.y >= FrameHeight)
        return;

    float2 texel = 1.0 / float2(FrameWidth, FrameHeight);
    float2 uv    = (float2(id.xy) + 0.5) * texel;

    float4 center = Reconstruct(uv);

    // 4-tap cross unsharp, same shape as the CPU path.
    float4 taps = Reconstruct(uv + float2(texel.x, 0)) +
                  Reconstruct(uv - float2(texel.x, 0)) +
                  Reconstruct(uv + float2(0, texel.y)) +
                  Reconstruct(uv - float2(0, texel.y));
    float4 sharpened = center + (center - taps * 0.25) * Sharpness;

    sharpened.a = center.a;
    Output[id.xy] = saturate(sharpened);
}
`

// gpuTuning is the quality/sharpness state shared by the GPU backends,
// matching the SoftGenerator semantics: a manual sharpness override
// survives preset changes.
type gpuTuning struct {
	mu        sync.Mutex
	quality   QualityPreset
	sharpness float32
	manual    bool
}

func newGPUTuning() gpuTuning {
	return gpuTuning{quality: PresetBalanced, sharpness: PresetBalanced.Sharpness()}
}

func (t *gpuTuning) setQuality(q QualityPreset) {
	if !q.Valid() {
		q = PresetBalanced
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.quality = q
	if !t.manual {
		t.sharpness = q.Sharpness()
	}
}

func (t *gpuTuning) setSharpness(s float32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sharpness = ClampSharpness(s)
	t.manual = true
}

func (t *gpuTuning) effectiveSharpness() float32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sharpness
}

// groupCount returns the dispatch group count covering n threads.
func groupCount(n int) uint32 {
	return uint32((n + gpuThreadGroup - 1) / gpuThreadGroup)
}
