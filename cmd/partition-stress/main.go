package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"runtime"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/plus3/tessera/ecs"
	"github.com/plus3/tessera/geom"
	"github.com/plus3/tessera/partition"
	"github.com/plus3/tessera/spatial"
)

const (
	worldSize   = 1024
	worldHeight = 128
	moveSpeed   = 24 // units per second
)

type Position struct {
	X, Y, Z float32
}

type Velocity struct {
	DX, DY, DZ float32
}

// occupant is one entity snapshotted with its current owner; the step loop
// re-snapshots every frame because subdivision and coalescing re-home
// entities between stores.
type occupant struct {
	chunk *spatial.Chunk
	id    ecs.EntityId
}

func main() {
	duration := flag.Duration("duration", 10*time.Second, "The total duration the test should run for.")
	entityCount := flag.Int("entities", 10000, "The number of entities to simulate.")
	strategy := flag.String("strategy", "quadtree", "Partition strategy: grid2d, grid3d, quadtree, octree, bvh, sap.")
	flag.Parse()

	log.Println("Starting partition stress test...")

	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Position](registry)
	ecs.RegisterComponent[Velocity](registry)

	part, maintain := buildPartition(*strategy, registry)
	owners := spatial.NewRegistry()
	part.RegisterAllChunks(owners, 1)

	posFn := partition.PositionVia(func(p *Position) mgl32.Vec3 {
		return mgl32.Vec3{p.X, p.Y, p.Z}
	})

	log.Printf("Populating %s partition with %d entities...\n", *strategy, *entityCount)
	for i := 0; i < *entityCount; i++ {
		pos := Position{
			X: rand.Float32() * worldSize,
			Y: rand.Float32() * worldHeight,
			Z: rand.Float32() * worldSize,
		}
		vel := Velocity{
			DX: (rand.Float32()*2 - 1) * moveSpeed,
			DY: (rand.Float32()*2 - 1) * moveSpeed / 4,
			DZ: (rand.Float32()*2 - 1) * moveSpeed,
		}
		chunk := part.GetChunk(mgl32.Vec3{pos.X, pos.Y, pos.Z}, partition.ClampToEdge)
		chunk.Store.Spawn(pos, vel)
	}
	log.Println("Population complete.")

	report := &Report{
		Duration: *duration,
		Entities: *entityCount,
		Strategy: *strategy,
	}
	runtime.ReadMemStats(&report.MemStatsStart)

	log.Printf("Running simulation for %s...\n", *duration)
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	startTime := time.Now()
	lastFrameTime := time.Now()

Loop:
	for {
		select {
		case <-ctx.Done():
			break Loop
		default:
			deltaTime := time.Since(lastFrameTime).Seconds()
			lastFrameTime = time.Now()

			frameStart := time.Now()
			crossings := stepEntities(part, float32(deltaTime))
			maintain(posFn, deltaTime)
			report.FrameTime.Samples = append(report.FrameTime.Samples, time.Since(frameStart))
			report.ChunkCrossings += int64(crossings)

			// Chunk crossings leave holes in the source columns; compact
			// periodically so storage stays dense under churn.
			if report.TotalFrames%64 == 63 {
				part.GlobalStore().Compact()
				part.Chunks(func(c *spatial.Chunk) bool {
					c.Store.Compact()
					return true
				})
			}

			cullStart := time.Now()
			visible := len(part.CullChunks(wanderingFrustum(time.Since(startTime).Seconds())))
			report.CullTime.Samples = append(report.CullTime.Samples, time.Since(cullStart))
			report.VisibleChunks += int64(visible)

			report.TotalFrames++
		}
	}

	report.TotalTime = time.Since(startTime)
	report.FrameTime.Finalize()
	report.CullTime.Finalize()
	report.FinalEntityCount = part.EntityCount()
	report.FinalChunkCount = 0
	part.Chunks(func(*spatial.Chunk) bool {
		report.FinalChunkCount++
		return true
	})
	report.RegisteredOwners = owners.Len()
	runtime.ReadMemStats(&report.MemStatsEnd)

	log.Println("Simulation finished.")

	fmt.Println("\n\n--- Stress Test Report ---")
	if err := report.Generate(os.Stdout); err != nil {
		log.Fatalf("Failed to generate report: %v", err)
	}
	fmt.Println("--- End of Report ---")

	if report.FinalEntityCount != *entityCount {
		log.Fatalf("entity conservation violated: %d != %d", report.FinalEntityCount, *entityCount)
	}
	log.Println("Stress test complete.")
}

// buildPartition returns the requested strategy and its per-frame
// maintenance step. Grids need none; trees split and coalesce; BVH and
// sweep-and-prune keep their acceleration structures current.
func buildPartition(strategy string, registry *ecs.ComponentRegistry) (partition.Partition, func(partition.PositionFunc, float64)) {
	bounds := geom.NewAABB(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{worldSize, worldHeight, worldSize})
	cfg := partition.TreeConfig{MaxEntitiesPerLeaf: 256, CoalesceBelow: 64, MinLeafSize: 16}

	noop := func(partition.PositionFunc, float64) {}

	switch strategy {
	case "grid2d":
		return partition.NewGrid2D(registry, mgl32.Vec3{0, 0, 0}, 16, 16, worldSize/16, 0, worldHeight), noop
	case "grid3d":
		return partition.NewGrid3D(registry, mgl32.Vec3{0, 0, 0}, 16, 2, 16, worldSize/16), noop
	case "quadtree":
		q := partition.NewQuadtree(registry, bounds, cfg)
		return q, func(posFn partition.PositionFunc, dt float64) {
			q.SubdivideIfOverCapacity(posFn)
			q.Update(dt)
		}
	case "octree":
		o := partition.NewOctree(registry, bounds, cfg)
		return o, func(posFn partition.PositionFunc, dt float64) {
			o.SubdivideIfOverCapacity(posFn)
			o.Update(dt)
		}
	case "bvh":
		b := partition.NewBVH(registry)
		for x := 0; x < 8; x++ {
			for z := 0; z < 8; z++ {
				min := mgl32.Vec3{float32(x) * worldSize / 8, 0, float32(z) * worldSize / 8}
				b.AddVolume(geom.AABB{Min: min, Max: min.Add(mgl32.Vec3{worldSize / 8, worldHeight, worldSize / 8})})
			}
		}
		b.Build()
		return b, func(partition.PositionFunc, float64) { b.Refit() }
	case "sap":
		s := partition.NewSweepPrune(registry)
		for x := 0; x < 8; x++ {
			for z := 0; z < 8; z++ {
				min := mgl32.Vec3{float32(x) * worldSize / 8, 0, float32(z) * worldSize / 8}
				s.Insert(geom.AABB{Min: min, Max: min.Add(mgl32.Vec3{worldSize / 8, worldHeight, worldSize / 8})})
			}
		}
		return s, noop
	default:
		log.Fatalf("unknown strategy %q", strategy)
		return nil, nil
	}
}

// stepEntities snapshots every chunk's occupants, integrates velocities
// (bouncing off the world edges), and transfers entities whose new position
// falls in another chunk. The snapshot is taken up front so an entity moved
// into a not-yet-visited chunk is not stepped twice in one frame. Returns
// the number of chunk crossings.
func stepEntities(part partition.Partition, dt float32) int {
	var occupants []occupant
	part.Chunks(func(c *spatial.Chunk) bool {
		for id := range c.Store.EntityIds() {
			occupants = append(occupants, occupant{chunk: c, id: id})
		}
		return true
	})

	crossings := 0
	for _, e := range occupants {
		pos := ecs.ReadComponent[Position](e.chunk.Store, e.id)
		vel := ecs.ReadComponent[Velocity](e.chunk.Store, e.id)
		if pos == nil || vel == nil {
			continue
		}

		pos.X += vel.DX * dt
		pos.Y += vel.DY * dt
		pos.Z += vel.DZ * dt
		bounce(&pos.X, &vel.DX, worldSize)
		bounce(&pos.Y, &vel.DY, worldHeight)
		bounce(&pos.Z, &vel.DZ, worldSize)

		dst := part.GetChunk(mgl32.Vec3{pos.X, pos.Y, pos.Z}, partition.ClampToEdge)
		if dst != nil && dst != e.chunk && e.chunk.Store.MoveTo(e.id, dst.Store) != 0 {
			crossings++
		}
	}
	return crossings
}

func bounce(pos, vel *float32, limit float32) {
	if *pos < 0 {
		*pos = -*pos
		*vel = -*vel
	}
	if *pos > limit {
		*pos = 2*limit - *pos
		*vel = -*vel
	}
}

// wanderingFrustum orbits an axis-aligned viewing volume around the world so
// successive culls see different chunk sets.
func wanderingFrustum(elapsed float64) geom.Frustum {
	offset := float32(int(elapsed*64) % worldSize)
	lo := mgl32.Vec3{offset - 128, 0, offset - 128}
	hi := mgl32.Vec3{offset + 128, worldHeight, offset + 128}
	return geom.Frustum{
		{N: mgl32.Vec3{1, 0, 0}, D: -lo[0]},
		{N: mgl32.Vec3{-1, 0, 0}, D: hi[0]},
		{N: mgl32.Vec3{0, 1, 0}, D: -lo[1]},
		{N: mgl32.Vec3{0, -1, 0}, D: hi[1]},
		{N: mgl32.Vec3{0, 0, 1}, D: -lo[2]},
		{N: mgl32.Vec3{0, 0, -1}, D: hi[2]},
	}
}
