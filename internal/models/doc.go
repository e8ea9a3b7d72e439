// Package models defines domain entities and persistence interfaces for the stramoot tour migration service.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs representing external service data
//   - [Tour] : Recorded tour metadata from Komoot
//   - [TourPage] : One page of tours plus the total page count known at fetch time
//   - [UploadRequest] : Content and metadata submitted to Strava
//   - [UploadStatus] : Strava's view of an asynchronous upload
//   - [SyncOutcome] : Per-tour result of a sync run
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [SyncRun] : Journal entry for one sync run with its counts and page error
//
// [UploadStatus.State] is the single place where Strava's status payload is
// classified into the closed [UploadState] variant (succeeded, in progress, failed).
//
// [Sport.ActivityType] maps every Komoot sport onto Strava's activity vocabulary:
// hikes stay hikes, everything else is uploaded as a ride.
package models
