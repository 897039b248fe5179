package main

import "time"

const (
	writeWait         = 10 * time.Second
	tickRate          = 15 // ticks per second
	maxTickDelta      = 0.5
	moveSpeed         = 4.0
	worldWidth        = 100.0
	worldHeight       = 100.0
	defaultSpawnX     = worldWidth / 2
	defaultSpawnY     = worldHeight / 2
	heartbeatInterval = 2 * time.Second
	disconnectAfter   = 3 * heartbeatInterval

	playerMaxHealth = 100.0
	npcMaxHealth    = 60.0

	arriveEpsilon = 0.05

	defaultQueueCapacity  = 8
	defaultBlockingBudget = 10 * time.Second
	defaultMaxConcurrent  = 4

	aiEvalEveryTicks    = 5
	npcDetectRange      = 5.0
	npcWanderRadius     = 10.0
	npcWanderWaitMin    = 1 * time.Second
	npcWanderWaitMax    = 4 * time.Second
	npcAttackDescriptor = "melee-strike"
	chaseDescriptorID   = "chase"

	factionPlayers  = "players"
	factionMonsters = "monsters"
)
